// Package shim is the ScaLAPACK/LAPACK-style compatibility surface: an
// external collaborator around the core driver, not a reimplementation
// of it. Grounded directly on
// original_source/scalapack_api/scalapack_posv.cc's slate_pposv, which
// decodes a BLACS-style array descriptor, builds a SLATE matrix view
// over the caller's existing ScaLAPACK-layout buffer, and calls the
// core factorization — this package does the same for the unpivoted
// LU driver instead of posv.
package shim

import (
	"context"
	"fmt"

	"github.com/dlattice/tessera/internal/comm"
	"github.com/dlattice/tessera/internal/diag"
	"github.com/dlattice/tessera/internal/driver"
	"github.com/dlattice/tessera/internal/errs"
	"github.com/dlattice/tessera/internal/kernel"
	"github.com/dlattice/tessera/internal/matrix"
	"github.com/dlattice/tessera/internal/options"
	"github.com/dlattice/tessera/internal/tile"
)

// Descriptor mirrors the 8-int BLACS-style array descriptor ScaLAPACK
// passes for every distributed matrix argument: DTYPE is omitted since
// this shim only ever describes dense matrices (ScaLAPACK's DTYPE=1).
type Descriptor struct {
	Ctxt int // BLACS context id, resolved to a comm.Comm by the caller
	M    int // global row count
	N    int // global column count
	MB   int // row blocking factor
	NB   int // column blocking factor
	RSrc int // process row owning the first row of the matrix
	CSrc int // process column owning the first column of the matrix
	LLD  int // local leading dimension of the caller's buffer
}

// Target controls which options.Target a PGESVNoPiv call resolves to;
// PGESVNoPiv's target parameter lets the caller pick HostTask vs. Devices the
// way scalapack_posv.cc's slate_scalapack_set_target() does from an
// environment-style setting, without this package hardcoding one.
type Target = kernel.Target

// PGESVNoPiv factors the distributed matrix described by desc, starting
// at 1-based element offset (ia, ja), using unpivoted LU.
// a holds this process's local ScaLAPACK-layout buffer; grid resolves
// desc.Ctxt's process grid to a comm.Comm and its P x Q shape.
//
// info follows ScaLAPACK's own INFO convention, exhibited by
// scalapack_posv.cc's own info output parameter: 0 on success, or the
// 1-based global column index of the first recorded NumericSingular
// diagnostic otherwise. PGESVNoPiv itself only returns an error for a
// malformed descriptor or communication failure — never for a singular
// matrix, which is diagnostic, not fatal.
func PGESVNoPiv[S tile.Scalar](desc Descriptor, ia, ja int, grid Grid, a []S, target Target) (info int, err error) {
	c, p, q, err := grid.Resolve(desc.Ctxt)
	if err != nil {
		return 0, fmt.Errorf("shim: PGESVNoPiv: %w", err)
	}
	if ia < 1 || ja < 1 {
		return 0, fmt.Errorf("shim: PGESVNoPiv: ia=%d ja=%d must be 1-based and >= 1: %w", ia, ja, errs.ErrInvalidArgument)
	}
	if (ia-1)%desc.MB != 0 || (ja-1)%desc.NB != 0 {
		return 0, fmt.Errorf("shim: PGESVNoPiv: (ia,ja)=(%d,%d) must fall on a tile boundary (mb=%d, nb=%d): %w", ia, ja, desc.MB, desc.NB, errs.ErrInvalidArgument)
	}
	if desc.RSrc != 0 || desc.CSrc != 0 {
		return 0, fmt.Errorf("shim: PGESVNoPiv: non-zero (rsrc,csrc)=(%d,%d) is not supported: %w", desc.RSrc, desc.CSrc, errs.ErrInvalidArgument)
	}

	root, err := matrix.FromUserLayout[S](desc.M, desc.N, a, desc.LLD, desc.MB, desc.NB, p, q, c)
	if err != nil {
		return 0, fmt.Errorf("shim: PGESVNoPiv: %w", err)
	}

	i0, j0 := (ia-1)/desc.MB, (ja-1)/desc.NB
	i1 := root.Mt
	j1 := root.Nt
	view, err := root.Sub(i0, i1, j0, j1)
	if err != nil {
		return 0, fmt.Errorf("shim: PGESVNoPiv: %w", err)
	}

	rep, err := driver.GetrfNoPiv[S](context.Background(), view, options.Map{
		options.Target:    target,
		options.Lookahead: 1,
	})
	if err != nil {
		return 0, fmt.Errorf("shim: PGESVNoPiv: %w", err)
	}
	return firstSingularColumn(rep.Singular, ja, desc.NB), nil
}

// firstSingularColumn converts the earliest recorded singular event
// into ScaLAPACK's 1-based global column INFO value, or 0 if none were
// recorded.
func firstSingularColumn(events []diag.SingularEvent, ja, nb int) int {
	if len(events) == 0 {
		return 0
	}
	first := events[0]
	for _, e := range events[1:] {
		if e.Tile[1] < first.Tile[1] || (e.Tile[1] == first.Tile[1] && e.Column < first.Column) {
			first = e
		}
	}
	return ja + first.Tile[1]*nb + first.Column
}

// Grid resolves a BLACS context id to the comm.Comm this process should
// factor its share of the matrix over, plus the context's process grid
// shape — the Go stand-in for Cblacs_gridinfo, since there is no global
// BLACS context table to query in this tree.
type Grid interface {
	Resolve(ctxt int) (c comm.Comm, p, q int, err error)
}

// StaticGrid is the simplest Grid: one fixed comm.Comm/(P,Q) shape, set
// up once by the caller, ignoring the ctxt argument entirely. Most
// callers of this shim only ever operate over a single BLACS context.
type StaticGrid struct {
	Comm comm.Comm
	P, Q int
}

// Resolve implements Grid.
func (g StaticGrid) Resolve(ctxt int) (comm.Comm, int, int, error) {
	if g.Comm == nil {
		return nil, 0, 0, fmt.Errorf("shim: StaticGrid has no comm configured: %w", errs.ErrInvalidArgument)
	}
	return g.Comm, g.P, g.Q, nil
}
