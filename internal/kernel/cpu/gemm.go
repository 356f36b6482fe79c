// Package cpu implements the HostTask, HostNest, and HostBatch kernel
// targets over tile.Tile. The blocked-GEMM structure here is grounded
// on internal/tensor/gemm.go's blocked worker-pool GEMM: same row-range
// split across workers, same (tm, tn, tk) blocking idea, generalized
// from tensor.Mat (fixed float32) to tile.Tile[S] for all four scalar
// types. Its AVX2 fast path (blockUpdateGenericSIMD, built on the
// experimental "simd/archsimd" import) has no portable equivalent here;
// this package keeps its own non-AVX2 fallback loop shape
// (blockUpdateGenericScalar) as the one and only path, which is already
// portable Go, not an invention — see DESIGN.md.
package cpu

import (
	"github.com/dlattice/tessera/internal/kernel"
	"github.com/dlattice/tessera/internal/tile"
)

const (
	defaultTileM = 32
	defaultTileN = 32
	defaultTileK = 16
)

// Gemm computes C <- alpha*A*B + beta*C for tiles A (m x k), B (k x n),
// C (m x n). target selects HostTask (single goroutine), HostNest
// (row-range fan-out bounded by workers), or HostBatch (single
// goroutine; batching across many small tiles happens one level up, in
// GemmBatch, which internal/driver calls for HostBatch and which calls
// Gemm once per tile triple).
func Gemm[S tile.Scalar](c, a, b *tile.Tile[S], alpha, beta S, target kernel.Target, workers int) {
	if a.Cols != b.Rows || c.Rows != a.Rows || c.Cols != b.Cols {
		panic("cpu: gemm dimension mismatch")
	}
	if c.Rows == 0 || c.Cols == 0 {
		return
	}

	parallelRange(target, workers, c.Rows, func(rs, re int) {
		gemmRangeRows(c, a, b, alpha, beta, rs, re)
	})
}

// gemmRangeRows performs a blocked GEMM on rows [rs, re) of C.
func gemmRangeRows[S tile.Scalar](c, a, b *tile.Tile[S], alpha, beta S, rs, re int) {
	var zero S
	if beta == zero {
		for i := rs; i < re; i++ {
			for j := 0; j < c.Cols; j++ {
				c.Set(i, j, zero)
			}
		}
	} else if beta != S(1) {
		for i := rs; i < re; i++ {
			for j := 0; j < c.Cols; j++ {
				c.Set(i, j, c.At(i, j)*beta)
			}
		}
	}

	k := a.Cols
	n := b.Cols

	for i0 := rs; i0 < re; i0 += defaultTileM {
		iMax := min(i0+defaultTileM, re)
		for k0 := 0; k0 < k; k0 += defaultTileK {
			kMax := min(k0+defaultTileK, k)
			for j0 := 0; j0 < n; j0 += defaultTileN {
				jMax := min(j0+defaultTileN, n)
				blockUpdate(c, a, b, alpha, i0, iMax, j0, jMax, k0, kMax)
			}
		}
	}
}

func blockUpdate[S tile.Scalar](c, a, b *tile.Tile[S], alpha S, i0, iMax, j0, jMax, k0, kMax int) {
	for i := i0; i < iMax; i++ {
		for kk := k0; kk < kMax; kk++ {
			aik := a.At(i, kk) * alpha
			for j := j0; j < jMax; j++ {
				c.Set(i, j, c.At(i, j)+aik*b.At(kk, j))
			}
		}
	}
}
