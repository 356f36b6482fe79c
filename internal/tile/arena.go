package tile

import (
	"fmt"
	"sync"

	"github.com/dlattice/tessera/internal/errs"
)

// Arena is a per-device pool that vends tile-sized buffers and reclaims
// them. CapacityElems bounds the number of scalar elements
// concurrently outstanding (vended and not yet Freed); Free pushes a
// buffer onto a size-classed free list instead of returning it to the
// runtime, so a later Allocate of the same shape is a pop, not a fresh
// make().
//
// A CapacityElems of zero means unbounded — used for the host arena by
// default, since the host's real limit is OS memory, not a fixed pool.
type Arena[S Scalar] struct {
	Device        int
	CapacityElems int64

	mu        sync.Mutex
	liveElems int64
	free      map[int][][]S
}

// NewArena constructs an Arena for the given device id and capacity (in
// scalar elements; 0 means unbounded).
func NewArena[S Scalar](device int, capacityElems int64) *Arena[S] {
	return &Arena[S]{
		Device:        device,
		CapacityElems: capacityElems,
		free:          make(map[int][][]S),
	}
}

// Allocate vends a Tile of shape (mb, nb) on this arena's device. It
// fails with errs.ErrOutOfMemory when the arena is exhausted and no
// freeable buffer exists.
func (a *Arena[S]) Allocate(mb, nb int, layout Layout) (*Tile[S], error) {
	if mb <= 0 || nb <= 0 {
		return nil, fmt.Errorf("tile: allocate %dx%d: %w", mb, nb, errs.ErrInvalidArgument)
	}
	n := mb * nb

	a.mu.Lock()
	defer a.mu.Unlock()

	if buf := a.popFreeExact(n); buf != nil {
		return a.wrap(mb, nb, layout, buf), nil
	}

	if a.CapacityElems <= 0 || a.liveElems+int64(n) <= a.CapacityElems {
		a.liveElems += int64(n)
		return a.wrap(mb, nb, layout, make([]S, n)), nil
	}

	if buf := a.popFreeAtLeast(n); buf != nil {
		a.liveElems += int64(n)
		return a.wrap(mb, nb, layout, buf[:n]), nil
	}

	return nil, fmt.Errorf("tile: arena device %d exhausted (capacity %d elems): %w", a.Device, a.CapacityElems, errs.ErrOutOfMemory)
}

// Free returns t's buffer to the arena's free list. It is a no-op while
// t's hold count is greater than zero: holds stack, and free is a no-op
// while holds > 0.
func (a *Arena[S]) Free(t *Tile[S]) {
	if t.Holds() > 0 {
		return
	}
	n := len(t.data)
	if n == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.free[n] = append(a.free[n], t.data)
	a.liveElems -= int64(n)
	t.data = nil
}

func (a *Arena[S]) wrap(mb, nb int, layout Layout, buf []S) *Tile[S] {
	ld := mb
	if layout == RowMajor {
		ld = nb
	}
	return &Tile[S]{
		Rows:   mb,
		Cols:   nb,
		LD:     ld,
		Device: a.Device,
		Layout: layout,
		data:   buf,
		origin: true,
	}
}

func (a *Arena[S]) popFreeExact(n int) []S {
	bufs := a.free[n]
	if len(bufs) == 0 {
		return nil
	}
	buf := bufs[len(bufs)-1]
	a.free[n] = bufs[:len(bufs)-1]
	a.liveElems += int64(n)
	return buf
}

// popFreeAtLeast scans the free list for any buffer at least n elements
// long, regardless of size class. Used only once the arena's nominal
// capacity is exhausted, as a last reclaim attempt before Allocate
// fails.
func (a *Arena[S]) popFreeAtLeast(n int) []S {
	for size, bufs := range a.free {
		if size >= n && len(bufs) > 0 {
			buf := bufs[len(bufs)-1]
			a.free[size] = bufs[:len(bufs)-1]
			return buf
		}
	}
	return nil
}

// LiveElems returns the number of scalar elements currently vended and
// not yet Freed. Exposed for the observability server and tests.
func (a *Arena[S]) LiveElems() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.liveElems
}
