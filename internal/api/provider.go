package api

import "github.com/dlattice/tessera/internal/diag"

// Provider is the observability surface's view of a running (or
// previously completed) factorization: the tile-ownership map, the
// scheduler's current in-flight task count, and the diagnostics
// channel. It is deliberately non-generic over Scalar — matrix.Matrix[S]
// is instantiated at a concrete S by the caller (cmd/tessera), which
// adapts it to this interface once per process.
type Provider interface {
	Rank() int
	Tiles() (mt, nt int, tiles []TileStatus)
	InFlight() int64
	Recorder() *diag.Recorder
}

// StaticProvider is a fixed-snapshot Provider, useful for a completed
// run — the server can report on the last finished factorization, not
// just a live one — and for tests.
type StaticProvider struct {
	RankValue     int
	Mt, Nt        int
	TilesValue    []TileStatus
	InFlightValue int64
	Rec           *diag.Recorder
}

func (p StaticProvider) Rank() int { return p.RankValue }

func (p StaticProvider) Tiles() (int, int, []TileStatus) { return p.Mt, p.Nt, p.TilesValue }

func (p StaticProvider) InFlight() int64 { return p.InFlightValue }

func (p StaticProvider) Recorder() *diag.Recorder { return p.Rec }
