// Package tile implements the tile-addressable storage unit that the
// distributed matrix, kernel adapters, and communication layer all
// operate on, plus the per-device memory arena that vends and reclaims
// tile buffers.
package tile

import "sync/atomic"

// Layout is the in-memory element ordering of a Tile's buffer.
type Layout int

const (
	ColumnMajor Layout = iota
	RowMajor
)

// HostDevice is the device id used for host-resident tiles. Accelerator
// device ids are >= 0.
const HostDevice = -1

// Tile is a contiguous rectangular block of scalars with a known
// stride, device placement, and mutability flags.
//
// A Tile has exactly one origin replica at any time; non-origin
// replicas are read-only unless promoted via SetOrigin. Lifetime:
// created by the matrix factory or by a kernel requesting workspace;
// destroyed when its hold count reaches zero and no pending task
// references it.
type Tile[S Scalar] struct {
	Rows, Cols int
	LD         int // leading dimension, >= Rows for ColumnMajor
	Device     int // HostDevice (-1) for host, >=0 for accelerators
	Layout     Layout

	data     []S
	base     int // element offset of (0,0) into data, for sub-tile views
	origin   bool
	modified bool
	holds    int32
}

// NewTile allocates a tile's backing buffer directly, bypassing an
// Arena. Used for workspace tiles whose lifetime is scoped to a single
// kernel call and that therefore don't need arena accounting.
func NewTile[S Scalar](rows, cols int, device int, layout Layout) *Tile[S] {
	ld := rows
	if layout == RowMajor {
		ld = cols
	}
	return &Tile[S]{
		Rows:   rows,
		Cols:   cols,
		LD:     ld,
		Device: device,
		Layout: layout,
		data:   make([]S, ld*maxDim(rows, cols, layout)),
		origin: true,
	}
}

// WrapBuffer constructs a Tile over a caller-supplied buffer without
// copying it — the vehicle for fromUserLayout: the matrix neither owns
// nor frees this buffer, and the usual tile lifetime/hold-count
// invariants still apply to the Tile built from it. data must be at
// least ld*maxDim(rows,cols,layout) elements long.
func WrapBuffer[S Scalar](data []S, ld, rows, cols int, layout Layout, device int) *Tile[S] {
	need := ld * maxDim(rows, cols, layout)
	if len(data) < need {
		panic("tile: WrapBuffer buffer too small for rows/cols/ld")
	}
	return &Tile[S]{
		Rows:   rows,
		Cols:   cols,
		LD:     ld,
		Device: device,
		Layout: layout,
		data:   data,
		origin: true,
	}
}

func maxDim(rows, cols int, layout Layout) int {
	if layout == RowMajor {
		return rows
	}
	return cols
}

// Data returns the tile's backing buffer. Callers index it using the
// tile's Layout and LD.
func (t *Tile[S]) Data() []S { return t.data }

// At returns the element at logical (row, col).
func (t *Tile[S]) At(row, col int) S {
	return t.data[t.offset(row, col)]
}

// Set writes the element at logical (row, col).
func (t *Tile[S]) Set(row, col int, v S) {
	t.data[t.offset(row, col)] = v
}

func (t *Tile[S]) offset(row, col int) int {
	if t.Layout == RowMajor {
		return t.base + row*t.LD + col
	}
	return t.base + col*t.LD + row
}

// Sub returns a view over the logical sub-block [rowStart,rowEnd) x
// [colStart,colEnd) of t, sharing t's backing buffer (and therefore its
// device placement and LD). Writes through the view mutate t. The
// kernel adapters use this to address a tile's diagonal block, panel,
// and trailing sub-blocks without copying.
func (t *Tile[S]) Sub(rowStart, rowEnd, colStart, colEnd int) *Tile[S] {
	if rowStart < 0 || colStart < 0 || rowEnd > t.Rows || colEnd > t.Cols || rowStart > rowEnd || colStart > colEnd {
		panic("tile: Sub out of range")
	}
	return &Tile[S]{
		Rows:     rowEnd - rowStart,
		Cols:     colEnd - colStart,
		LD:       t.LD,
		Device:   t.Device,
		Layout:   t.Layout,
		data:     t.data,
		base:     t.offset(rowStart, colStart),
		origin:   t.origin,
		modified: t.modified,
	}
}

// IsOrigin reports whether this replica is the canonical copy.
func (t *Tile[S]) IsOrigin() bool { return t.origin }

// IsModified reports whether this replica has been written since the
// last coherence refresh against the origin.
func (t *Tile[S]) IsModified() bool { return t.modified }

// AcquireHold increments the tile's hold count, pinning it against
// reclamation by an Arena. Holds stack.
func (t *Tile[S]) AcquireHold() { atomic.AddInt32(&t.holds, 1) }

// ReleaseHold decrements the tile's hold count. It is the caller's
// responsibility to match every AcquireHold with a ReleaseHold.
func (t *Tile[S]) ReleaseHold() { atomic.AddInt32(&t.holds, -1) }

// Holds returns the current hold count.
func (t *Tile[S]) Holds() int32 { return atomic.LoadInt32(&t.holds) }

// SetOrigin marks this replica as the canonical copy. Idempotent per
// device. Callers transferring origin from one device to another must
// first copy the modified bytes synchronously (internal/device handles
// that for accelerator transfers); SetOrigin itself performs no copy —
// there is no implicit coherence.
func (t *Tile[S]) SetOrigin() { t.origin = true }

// ClearOrigin demotes this replica to a non-canonical, read-only copy.
func (t *Tile[S]) ClearOrigin() { t.origin = false }

// MarkModified marks the tile dirty on its current device. Device
// replicas of this tile are coherent with the host origin iff this flag
// is clear.
func (t *Tile[S]) MarkModified() { t.modified = true }

// ClearModified clears the dirty flag, e.g. after a coherence refresh.
func (t *Tile[S]) ClearModified() { t.modified = false }

// CopyFrom overwrites this tile's buffer with src's, element for
// element. Both tiles must have matching Rows/Cols. Used by
// SetOrigin-driven replica transfers and by Arena-level workspace
// reuse.
func (t *Tile[S]) CopyFrom(src *Tile[S]) {
	if t.Rows != src.Rows || t.Cols != src.Cols {
		panic("tile: CopyFrom dimension mismatch")
	}
	for c := 0; c < t.Cols; c++ {
		for r := 0; r < t.Rows; r++ {
			t.Set(r, c, src.At(r, c))
		}
	}
}
