// Package kernel defines the uniform kernel-adapter shape: thin
// wrappers around per-tile math (gemm/trsm/getrf/...) that accept tile
// handles, a target, and a priority. Individual kernel mathematics are
// out of scope here — internal/kernel/cpu and internal/device provide
// the concrete per-target implementations that this package's Adapter
// interface abstracts over.
package kernel

import (
	"fmt"

	"github.com/dlattice/tessera/internal/tile"
)

// Target is the execution location for a kernel call. All four are
// optional per build; Devices with no accelerator available falls back
// to the host batch path (documented per driver call site, not
// silently — see internal/driver).
type Target int

const (
	HostTask Target = iota
	HostNest
	HostBatch
	Devices
)

func (t Target) String() string {
	switch t {
	case HostTask:
		return "HostTask"
	case HostNest:
		return "HostNest"
	case HostBatch:
		return "HostBatch"
	case Devices:
		return "Devices"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

// Valid reports whether t is one of the four sealed Target values.
func (t Target) Valid() bool {
	return t >= HostTask && t <= Devices
}

// Adapter is the uniform per-target kernel surface internal/driver calls
// through instead of branching on Target at every call site: one Adapter
// value is bound to a fixed target, and Gemm/Trsm/GetrfNoPiv carry the
// same tile-handle arguments regardless of which target backs them.
// internal/kernel/cpu's HostAdapter is the only implementation. For
// HostBatch and Devices, internal/driver sends batched Gemm/Trsm work to
// cpu.GemmBatch/TrsmBatch directly instead of through an Adapter.
type Adapter[S tile.Scalar] interface {
	Gemm(c, a, b *tile.Tile[S], alpha, beta S, workers int)
	Trsm(side Side, uplo Uplo, diag Diag, alpha S, t, b *tile.Tile[S], workers int)
	GetrfNoPiv(a *tile.Tile[S], ib, workers int) []int
}

// Priority is a task's scheduling priority. The scheduler runs runnable
// High tasks ahead of runnable Normal tasks. It has no aging or quota,
// so a steady stream of High tasks can hold Normal tasks back.
type Priority int

const (
	Normal Priority = iota
	High
)

// Side, Uplo, Diag, and Op mirror the BLAS/LAPACK enums the worked
// source (original_source/src/getrf_nopiv.cc) passes to trsm/gemm.
// They are carried here, rather than re-derived per call site, because
// internal/matrix's TriangularMatrix/HermitianMatrix wrappers and
// internal/kernel/cpu's Trsm both need the same vocabulary.
type (
	Side int
	Uplo int
	Diag int
	Op   int
)

const (
	Left Side = iota
	Right
)

const (
	Upper Uplo = iota
	Lower
)

const (
	NonUnit Diag = iota
	Unit
)

const (
	NoTrans Op = iota
	Trans
	ConjTrans
)
