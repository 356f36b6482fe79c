package cpu

import (
	"github.com/dlattice/tessera/internal/kernel"
	"github.com/dlattice/tessera/internal/tile"
)

// HostAdapter implements kernel.Adapter for the HostTask and HostNest
// targets: every call is dispatched immediately through this package's
// Gemm/Trsm/GetrfNoPiv functions against the bound Target, with HostNest
// additionally fanning work out across rows inside parallelRange.
type HostAdapter[S tile.Scalar] struct {
	Target kernel.Target
}

// Gemm implements kernel.Adapter.
func (h HostAdapter[S]) Gemm(c, a, b *tile.Tile[S], alpha, beta S, workers int) {
	Gemm(c, a, b, alpha, beta, h.Target, workers)
}

// Trsm implements kernel.Adapter.
func (h HostAdapter[S]) Trsm(side kernel.Side, uplo kernel.Uplo, diag kernel.Diag, alpha S, t, b *tile.Tile[S], workers int) {
	Trsm(side, uplo, diag, alpha, t, b, h.Target, workers)
}

// GetrfNoPiv implements kernel.Adapter.
func (h HostAdapter[S]) GetrfNoPiv(a *tile.Tile[S], ib, workers int) []int {
	return GetrfNoPiv(a, ib, h.Target, workers)
}
