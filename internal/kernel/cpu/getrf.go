package cpu

import (
	"github.com/dlattice/tessera/internal/kernel"
	"github.com/dlattice/tessera/internal/tile"
)

// GetrfNoPiv factors a square diagonal tile a in place, without
// pivoting, as L*U with L unit lower triangular (stored in a's strict
// lower part) and U upper triangular (stored in a's upper part,
// including the diagonal). It is the tile-local kernel
// internal::getrf_nopiv<Target> calls in original_source/src/getrf_nopiv.cc
// dispatches to for each diagonal tile A(k,k); ib blocks the
// factorization the same way LAPACK's recursive dgetrf2 does, trading
// BLAS-1 elimination for BLAS-3 trsm/gemm once a panel reaches ib
// columns.
//
// The returned slice holds the column indices (relative to a) at which
// a zero pivot was found; a zero pivot is left undivided (its column
// below the diagonal is zeroed) so the rest of the factorization stays
// finite, and the driver surfaces these indices via Report.Singular
// (see DESIGN.md for the zero-pivot handling decision).
func GetrfNoPiv[S tile.Scalar](a *tile.Tile[S], ib int, target kernel.Target, workers int) []int {
	if a.Rows != a.Cols {
		panic("cpu: getrf_nopiv requires a square tile")
	}
	n := a.Rows
	if n == 0 {
		return nil
	}
	if ib <= 0 || ib > n {
		ib = n
	}

	var singular []int
	for j0 := 0; j0 < n; j0 += ib {
		j1 := min(j0+ib, n)

		panel := a.Sub(j0, n, j0, j1)
		local := unblockedGetrfNoPiv(panel)
		for _, c := range local {
			singular = append(singular, j0+c)
		}

		if j1 < n {
			l11 := a.Sub(j0, j1, j0, j1)
			u12 := a.Sub(j0, j1, j1, n)
			Trsm(kernel.Left, kernel.Lower, kernel.Unit, S(1), l11, u12, target, workers)

			l21 := a.Sub(j1, n, j0, j1)
			a22 := a.Sub(j1, n, j1, n)
			Gemm(a22, l21, u12, S(-1), S(1), target, workers)
		}
	}
	return singular
}

// unblockedGetrfNoPiv factors panel (m x bs, m >= bs) in place using
// right-looking outer-product elimination: column jj's sub-diagonal
// entries become L(:,jj), and the trailing sub-block is updated by the
// rank-1 outer product before moving to column jj+1. Returns the
// column indices where the pivot was exactly zero.
func unblockedGetrfNoPiv[S tile.Scalar](panel *tile.Tile[S]) []int {
	m, bs := panel.Rows, panel.Cols
	var singular []int

	var zero S
	for jj := 0; jj < bs; jj++ {
		pivot := panel.At(jj, jj)
		if tile.IsZeroScalar(pivot) {
			singular = append(singular, jj)
			for i := jj + 1; i < m; i++ {
				panel.Set(i, jj, zero)
			}
			continue
		}
		for i := jj + 1; i < m; i++ {
			panel.Set(i, jj, panel.At(i, jj)/pivot)
		}
		for i := jj + 1; i < m; i++ {
			lij := panel.At(i, jj)
			for k := jj + 1; k < bs; k++ {
				panel.Set(i, k, panel.At(i, k)-lij*panel.At(jj, k))
			}
		}
	}
	return singular
}
