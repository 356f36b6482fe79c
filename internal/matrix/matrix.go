// Package matrix implements the distributed, tile-based dense matrix: a
// two-dimensional grid of tiles over a process grid, with a
// block-cyclic ownership map, per-tile replica tracking, and O(1)
// sub-matrix/transpose/conjugate-transpose views. Grounded on
// internal/tile's tile-addressed storage conventions and generalized
// from a single-process tensor to a distributed one via internal/comm.
package matrix

import (
	"fmt"
	"sync"

	"github.com/dlattice/tessera/internal/comm"
	"github.com/dlattice/tessera/internal/errs"
	"github.com/dlattice/tessera/internal/tile"
)

// Matrix is a distributed matrix of shape (Mt x Nt) tiles over a P x Q
// process grid. A Matrix value doubles as its own sub-matrix view: Sub,
// Transpose, and ConjTranspose all return a new Matrix sharing the same
// underlying store. A sub-matrix view never outliving its parent is the
// caller's responsibility the same way a Go slice's lifetime is — a
// view holds a live pointer into the parent's store.
type Matrix[S tile.Scalar] struct {
	// Mt, Nt are this view's tile-grid extents.
	Mt, Nt int
	// Mb, Nb are the nominal tile dimensions in scalars. Tiles at the
	// trailing edge of the global matrix may be smaller when Mg/Ng
	// isn't a multiple of Mb/Nb.
	Mb, Nb int
	// P, Q is the process grid shape tiles are distributed over.
	P, Q int
	// Mg, Ng are the global element extents of the root matrix this
	// view was derived from.
	Mg, Ng int

	// rowBase, colBase offset this view's local tile indices into the
	// root matrix's global tile-grid coordinates.
	rowBase, colBase int

	transposed bool
	conj       bool

	store *store[S]
}

// store holds the state shared by a Matrix and every view derived from
// it via Sub/Transpose/ConjTranspose.
type store[S tile.Scalar] struct {
	comm  comm.Comm
	arena *tile.Arena[S]

	mu    sync.RWMutex
	tiles map[[2]int]*tile.Tile[S] // keyed by root (i,j): owned tiles plus cached remote replicas
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func checkGridDims(mt, nt, mb, nb, p, q int) error {
	if mt <= 0 || nt <= 0 || mb <= 0 || nb <= 0 || p <= 0 || q <= 0 {
		return fmt.Errorf("matrix: invalid dimensions mt=%d nt=%d mb=%d nb=%d p=%d q=%d: %w", mt, nt, mb, nb, p, q, errs.ErrInvalidArgument)
	}
	return nil
}

// NewMatrix allocates a fresh Mt x Nt tile-grid matrix distributed
// block-cyclically over a P x Q process grid, allocating only the
// tiles this rank (c.Rank()) owns.
func NewMatrix[S tile.Scalar](mt, nt, mb, nb, p, q int, c comm.Comm, arena *tile.Arena[S]) (*Matrix[S], error) {
	if err := checkGridDims(mt, nt, mb, nb, p, q); err != nil {
		return nil, err
	}
	if p*q != c.Size() {
		return nil, fmt.Errorf("matrix: process grid %dx%d does not match comm size %d: %w", p, q, c.Size(), errs.ErrInvalidArgument)
	}

	m := &Matrix[S]{
		Mt: mt, Nt: nt, Mb: mb, Nb: nb, P: p, Q: q,
		Mg: mt * mb, Ng: nt * nb,
		store: &store[S]{comm: c, arena: arena, tiles: make(map[[2]int]*tile.Tile[S])},
	}
	for i := 0; i < mt; i++ {
		for j := 0; j < nt; j++ {
			if m.tileOwnerRank(i, j) != c.Rank() {
				continue
			}
			t, err := arena.Allocate(mb, nb, tile.ColumnMajor)
			if err != nil {
				return nil, err
			}
			t.SetOrigin()
			m.store.tiles[[2]int{i, j}] = t
		}
	}
	return m, nil
}

// FromUserLayout wraps a caller-supplied column-major block-cyclic
// local buffer without copying it: ptr holds only the tiles this rank
// owns, laid out with leading dimension lld at local offset
// ((r/mb/P)*mb + r%mb, (c/nb/Q)*nb + c%nb) for global element (r, c) —
// the ScaLAPACK descriptor convention pkg/shim's compatibility shim
// relies on. The matrix neither owns nor frees ptr.
func FromUserLayout[S tile.Scalar](mg, ng int, ptr []S, lld, mb, nb, p, q int, c comm.Comm) (*Matrix[S], error) {
	mt, nt := ceilDiv(mg, mb), ceilDiv(ng, nb)
	if err := checkGridDims(mt, nt, mb, nb, p, q); err != nil {
		return nil, err
	}
	if p*q != c.Size() {
		return nil, fmt.Errorf("matrix: process grid %dx%d does not match comm size %d: %w", p, q, c.Size(), errs.ErrInvalidArgument)
	}

	// Local tile-grid extents: ceil(mt/P) local tile-rows, ceil(nt/Q)
	// local tile-columns, each of width mb/nb.
	localMt := ceilDiv(mt, p)
	localNt := ceilDiv(nt, q)
	localRows := localMt * mb
	localCols := localNt * nb
	if lld < localRows {
		return nil, fmt.Errorf("matrix: lld=%d smaller than local row extent %d: %w", lld, localRows, errs.ErrInvalidArgument)
	}

	backing := tile.WrapBuffer[S](ptr, lld, localRows, localCols, tile.ColumnMajor, tile.HostDevice)

	m := &Matrix[S]{
		Mt: mt, Nt: nt, Mb: mb, Nb: nb, P: p, Q: q,
		Mg: mg, Ng: ng,
		store: &store[S]{comm: c, arena: nil, tiles: make(map[[2]int]*tile.Tile[S])},
	}
	for i := 0; i < mt; i++ {
		for j := 0; j < nt; j++ {
			if m.tileOwnerRank(i, j) != c.Rank() {
				continue
			}
			li, lj := i/p, j/q
			rows, cols := m.rowsOf(i), m.colsOf(j)
			sub := backing.Sub(li*mb, li*mb+rows, lj*nb, lj*nb+cols)
			m.store.tiles[[2]int{i, j}] = sub
		}
	}
	return m, nil
}

// rowsOf returns the element row count of tile-row i, accounting for a
// partial trailing tile when Mg is not a multiple of Mb.
func (m *Matrix[S]) rowsOf(i int) int {
	if i < m.Mt-1 || m.Mg%m.Mb == 0 {
		return m.Mb
	}
	return m.Mg - (m.Mt-1)*m.Mb
}

// colsOf returns the element column count of tile-column j.
func (m *Matrix[S]) colsOf(j int) int {
	if j < m.Nt-1 || m.Ng%m.Nb == 0 {
		return m.Nb
	}
	return m.Ng - (m.Nt-1)*m.Nb
}

// toRoot translates this view's local tile coordinates into the root
// matrix's global tile-grid coordinates, composing any Transpose the
// view carries.
func (m *Matrix[S]) toRoot(i, j int) (int, int) {
	if m.transposed {
		i, j = j, i
	}
	return m.rowBase + i, m.colBase + j
}

// tileOwnerRank returns the rank owning root tile (gi, gj) under the 2-D
// block-cyclic mapping, with column-major process numbering (see
// DESIGN.md for the grid-ordering decision).
func (m *Matrix[S]) tileOwnerRank(gi, gj int) int {
	pr, pc := gi%m.P, gj%m.Q
	return pc*m.P + pr
}

// TileOwner returns the (row, col) process-grid coordinates owning
// tile (i, j) of this view.
func (m *Matrix[S]) TileOwner(i, j int) (int, int) {
	gi, gj := m.toRoot(i, j)
	return gi % m.P, gj % m.Q
}

// TileIsLocal reports whether tile (i, j) of this view is owned by the
// calling rank.
func (m *Matrix[S]) TileIsLocal(i, j int) bool {
	gi, gj := m.toRoot(i, j)
	return m.tileOwnerRank(gi, gj) == m.store.comm.Rank()
}

// LocalTile returns the resident replica of tile (i, j) — the owner's
// origin if local, or a previously cached remote replica delivered by
// TileBcast/ListBcast. ok is false if neither exists yet.
func (m *Matrix[S]) LocalTile(i, j int) (t *tile.Tile[S], ok bool) {
	gi, gj := m.toRoot(i, j)
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	t, ok = m.store.tiles[[2]int{gi, gj}]
	return t, ok
}

// setCachedTile installs a remote replica received via broadcast.
func (m *Matrix[S]) setCachedTile(gi, gj int, t *tile.Tile[S]) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.tiles[[2]int{gi, gj}] = t
}

// Sub returns a constant-time view over the tile range [i0,i1) x
// [j0,j1) of this view, sharing the parent's store and composing the
// parent's transpose/conjugate state.
func (m *Matrix[S]) Sub(i0, i1, j0, j1 int) (*Matrix[S], error) {
	if i0 < 0 || j0 < 0 || i1 > m.Mt || j1 > m.Nt || i0 > i1 || j0 > j1 {
		return nil, fmt.Errorf("matrix: Sub(%d,%d,%d,%d) out of range for %dx%d tile grid: %w", i0, i1, j0, j1, m.Mt, m.Nt, errs.ErrInvalidArgument)
	}
	// toRoot swaps (i0,j0) into root coordinates when the parent is a
	// transposed view, so rowBase/colBase always land in root space
	// regardless of how many Transpose calls preceded this Sub.
	gi0, gj0 := m.toRoot(i0, j0)
	view := *m
	view.Mt, view.Nt = i1-i0, j1-j0
	view.rowBase, view.colBase = gi0, gj0
	return &view, nil
}

// Transpose returns an O(1) view with rows and columns swapped;
// transpose(transpose(A)) composes back to the identity view.
func (m *Matrix[S]) Transpose() *Matrix[S] {
	view := *m
	view.Mt, view.Nt = m.Nt, m.Mt
	view.Mb, view.Nb = m.Nb, m.Mb
	view.Mg, view.Ng = m.Ng, m.Mg
	view.transposed = !m.transposed
	return &view
}

// ConjTranspose returns an O(1) conjugate-transpose view. On a real
// scalar type this degenerates to Transpose.
func (m *Matrix[S]) ConjTranspose() *Matrix[S] {
	view := m.Transpose()
	if tile.IsComplexScalar[S]() {
		view.conj = !m.conj
	}
	return view
}

// At returns the logical element at global (row, col) of this view,
// composing any Transpose/ConjTranspose the view carries —
// transpose(transpose(A)) == A at the element level, not just the
// tile-grid level. The tile holding (row, col) must already be resident
// (local or a cached replica from TileBcast/ListBcast).
func (m *Matrix[S]) At(row, col int) (S, error) {
	var zero S
	if row < 0 || col < 0 || row >= m.Mg || col >= m.Ng {
		return zero, fmt.Errorf("matrix: At(%d,%d) out of range for %dx%d: %w", row, col, m.Mg, m.Ng, errs.ErrInvalidArgument)
	}
	ti, tj := row/m.Mb, col/m.Nb
	lr, lc := row%m.Mb, col%m.Nb

	gi, gj := m.toRoot(ti, tj)
	m.store.mu.RLock()
	t, ok := m.store.tiles[[2]int{gi, gj}]
	m.store.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("matrix: At(%d,%d): tile (%d,%d) not resident: %w", row, col, gi, gj, errs.ErrInvalidArgument)
	}

	physRow, physCol := lr, lc
	if m.transposed {
		physRow, physCol = lc, lr
	}
	v := t.At(physRow, physCol)
	if m.conj {
		v = tile.ConjScalar(v)
	}
	return v, nil
}

// IsConjugated reports whether accesses to this view should conjugate
// elements relative to the root's storage.
func (m *Matrix[S]) IsConjugated() bool { return m.conj }

// IsTransposed reports whether this view's row/column axes are swapped
// relative to the root's storage.
func (m *Matrix[S]) IsTransposed() bool { return m.transposed }

// Rank returns the calling process's rank within the matrix's comm.
func (m *Matrix[S]) Rank() int { return m.store.comm.Rank() }

// Comm returns the communicator this matrix was built over.
func (m *Matrix[S]) Comm() comm.Comm { return m.store.comm }

// TileUpdateOrigin pulls tile (i,j)'s non-host replicas back to the
// host origin if any device replica is modified. Host-only matrices
// (every retrieved-corpus CPU path, absent a cuda build) this is a
// no-op, since there is never a device replica to reconcile.
func (m *Matrix[S]) TileUpdateOrigin(i, j int) error {
	t, ok := m.LocalTile(i, j)
	if !ok {
		return fmt.Errorf("matrix: TileUpdateOrigin(%d,%d): tile not resident: %w", i, j, errs.ErrInvalidArgument)
	}
	if t.Device == tile.HostDevice || !t.IsModified() {
		return nil
	}
	// A real accelerator path would DMA t's device buffer back into a
	// host tile here via internal/device; CPU-only kernels never mark a
	// non-host tile modified, so this path is presently unreachable.
	t.ClearModified()
	return nil
}

// TileUpdateAllOrigin runs TileUpdateOrigin over every locally resident
// tile of this view.
func (m *Matrix[S]) TileUpdateAllOrigin() error {
	for i := 0; i < m.Mt; i++ {
		for j := 0; j < m.Nt; j++ {
			if !m.TileIsLocal(i, j) {
				continue
			}
			if err := m.TileUpdateOrigin(i, j); err != nil {
				return err
			}
		}
	}
	return nil
}

// ClearWorkspace releases every non-origin (cached remote) replica held
// by this view's store. Locally owned origin tiles are never released
// by this call.
func (m *Matrix[S]) ClearWorkspace() {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for key, t := range m.store.tiles {
		if t.IsOrigin() {
			continue
		}
		delete(m.store.tiles, key)
	}
}
