package api

import (
	"github.com/dlattice/tessera/internal/diag"
	"github.com/dlattice/tessera/internal/matrix"
	"github.com/dlattice/tessera/internal/scheduler"
	"github.com/dlattice/tessera/internal/tile"
)

// SnapshotMatrix builds a StaticProvider from a live or just-completed
// factorization's matrix view, scheduler pool, and diagnostics
// recorder — the one place this package's Scalar-agnostic Provider
// interface meets a concrete instantiation (cmd/tessera calls this once
// per process, at whatever S it built its matrix.Matrix over).
func SnapshotMatrix[S tile.Scalar](m *matrix.Matrix[S], pool *scheduler.Pool, rec *diag.Recorder) StaticProvider {
	tiles := make([]TileStatus, 0, m.Mt*m.Nt)
	for i := 0; i < m.Mt; i++ {
		for j := 0; j < m.Nt; j++ {
			pr, pc := m.TileOwner(i, j)
			_, resident := m.LocalTile(i, j)
			tiles = append(tiles, TileStatus{
				Row:       i,
				Col:       j,
				OwnerRank: pc*m.P + pr,
				Resident:  resident,
			})
		}
	}

	var inFlight int64
	if pool != nil {
		inFlight = pool.InFlight()
	}

	return StaticProvider{
		RankValue:     m.Rank(),
		Mt:            m.Mt,
		Nt:            m.Nt,
		TilesValue:    tiles,
		InFlightValue: inFlight,
		Rec:           rec,
	}
}
