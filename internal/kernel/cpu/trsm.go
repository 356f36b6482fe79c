package cpu

import (
	"github.com/dlattice/tessera/internal/kernel"
	"github.com/dlattice/tessera/internal/tile"
)

// Trsm solves one of:
//
//	Side == Left:  op(T) * X = alpha*B   (T is n x n, B/X is n x m)
//	Side == Right: X * op(T) = alpha*B   (T is n x n, B/X is m x n)
//
// in place, overwriting b with X. T must be square and triangular per
// uplo; diag selects whether T's diagonal is taken as all-ones (Unit)
// or read from T (NonUnit). Only op == NoTrans is implemented — the
// driver never requests a transposed trsm; its two call sites are
// Side=Right/Uplo=Upper/Diag=NonUnit and Side=Left/Uplo=Lower/Diag=Unit.
func Trsm[S tile.Scalar](side kernel.Side, uplo kernel.Uplo, diag kernel.Diag, alpha S, t, b *tile.Tile[S], target kernel.Target, workers int) {
	if t.Rows != t.Cols {
		panic("cpu: trsm triangular operand must be square")
	}
	n := t.Rows

	switch side {
	case kernel.Left:
		if b.Rows != n {
			panic("cpu: trsm dimension mismatch (Left)")
		}
		trsmLeft(t, b, uplo, diag, alpha, target, workers)
	case kernel.Right:
		if b.Cols != n {
			panic("cpu: trsm dimension mismatch (Right)")
		}
		trsmRight(t, b, uplo, diag, alpha, target, workers)
	}
}

// trsmLeft solves op(T) X = alpha B in place over b, column by column
// (each column of B/X is an independent system, so columns are the
// natural unit of parallel work for HostNest).
func trsmLeft[S tile.Scalar](t, b *tile.Tile[S], uplo kernel.Uplo, diag kernel.Diag, alpha S, target kernel.Target, workers int) {
	scaleAlpha(b, alpha)
	m := b.Cols
	run := func(cs, ce int) {
		for col := cs; col < ce; col++ {
			solveColumnLeft(t, b, col, uplo, diag)
		}
	}
	parallelRange(target, workers, m, run)
}

func solveColumnLeft[S tile.Scalar](t, b *tile.Tile[S], col int, uplo kernel.Uplo, diag kernel.Diag) {
	n := t.Rows
	if uplo == kernel.Lower {
		for i := 0; i < n; i++ {
			sum := b.At(i, col)
			for k := 0; k < i; k++ {
				sum -= t.At(i, k) * b.At(k, col)
			}
			if diag == kernel.NonUnit {
				sum = sum / t.At(i, i)
			}
			b.Set(i, col, sum)
		}
		return
	}
	for i := n - 1; i >= 0; i-- {
		sum := b.At(i, col)
		for k := i + 1; k < n; k++ {
			sum -= t.At(i, k) * b.At(k, col)
		}
		if diag == kernel.NonUnit {
			sum = sum / t.At(i, i)
		}
		b.Set(i, col, sum)
	}
}

// scaleAlpha pre-scales b by alpha so the substitution loops in
// solveColumnLeft/solveRowRight stay branch-free for the overwhelmingly
// common alpha==1 case the driver always uses.
func scaleAlpha[S tile.Scalar](b *tile.Tile[S], alpha S) {
	if alpha == S(1) {
		return
	}
	for i := 0; i < b.Rows; i++ {
		for j := 0; j < b.Cols; j++ {
			b.Set(i, j, b.At(i, j)*alpha)
		}
	}
}

// trsmRight solves X op(T) = alpha B in place over b, row by row.
func trsmRight[S tile.Scalar](t, b *tile.Tile[S], uplo kernel.Uplo, diag kernel.Diag, alpha S, target kernel.Target, workers int) {
	scaleAlpha(b, alpha)
	m := b.Rows
	run := func(rs, re int) {
		for row := rs; row < re; row++ {
			solveRowRight(t, b, row, uplo, diag)
		}
	}
	parallelRange(target, workers, m, run)
}

func solveRowRight[S tile.Scalar](t, b *tile.Tile[S], row int, uplo kernel.Uplo, diag kernel.Diag) {
	n := t.Cols
	if uplo == kernel.Upper {
		for j := 0; j < n; j++ {
			sum := b.At(row, j)
			for k := 0; k < j; k++ {
				sum -= b.At(row, k) * t.At(k, j)
			}
			if diag == kernel.NonUnit {
				sum = sum / t.At(j, j)
			}
			b.Set(row, j, sum)
		}
		return
	}
	for j := n - 1; j >= 0; j-- {
		sum := b.At(row, j)
		for k := j + 1; k < n; k++ {
			sum -= b.At(row, k) * t.At(k, j)
		}
		if diag == kernel.NonUnit {
			sum = sum / t.At(j, j)
		}
		b.Set(row, j, sum)
	}
}
