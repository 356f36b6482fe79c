// Package comm implements the broadcast-based point-to-multipoint
// communication layer: a Comm interface carrying the tag-disjointness
// contract, and localComm, a single-process simulation of a process
// grid over goroutines and channels. No MPI binding exists in the
// retrieved corpus (see DESIGN.md's dropped-dependency entry), so Comm
// is an interface precisely so a real transport can later stand in
// without internal/driver or internal/matrix noticing.
package comm

import (
	"context"
	"fmt"

	"github.com/dlattice/tessera/internal/errs"
)

// Comm is the per-rank handle into a communicator. Every broadcast is a
// push from the calling rank (the source) to a destination set; there
// is no collective join the way MPI_Bcast requires, matching the
// worked source's "broadcast = send tile to a set of processes" model.
type Comm interface {
	Rank() int
	Size() int

	// Bcast sends data to every rank in dests, tagged tag. dests may
	// include the caller's own rank, which is a no-op self-delivery
	// skip; an empty dests is itself a no-op.
	Bcast(ctx context.Context, tag int64, data []byte, dests []int) error

	// Recv blocks until a message tagged tag arrives for this rank, or
	// ctx is done.
	Recv(ctx context.Context, tag int64) ([]byte, error)

	// BytesSent/BytesRecv report cumulative payload bytes moved through
	// this rank, for internal/diag's bandwidth accounting.
	BytesSent() int64
	BytesRecv() int64
}

// wrapFailure wraps a transport error into the ErrCommunicationFailure
// sentinel, never surfaced as a bare context error.
func wrapFailure(op string, rank int, tag int64, err error) error {
	return fmt.Errorf("comm: %s rank=%d tag=%d: %w: %v", op, rank, tag, errs.ErrCommunicationFailure, err)
}
