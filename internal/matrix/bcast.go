package matrix

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"github.com/dlattice/tessera/internal/errs"
	"github.com/dlattice/tessera/internal/tile"
)

// toBytes reinterprets a tile's backing scalars as a byte slice for
// transport, grounded on internal/gguf/tensor.go's use of unsafe.Slice
// to reinterpret a raw byte buffer as []float32 — applied here in the
// opposite direction and generalized over Scalar via unsafe.Sizeof,
// which Go resolves per generic instantiation.
func toBytes[S tile.Scalar](data []S) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero S
	sz := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*sz)
}

// fromBytes reinterprets raw bytes received over comm back into n
// scalars of type S.
func fromBytes[S tile.Scalar](data []byte, n int) []S {
	if n == 0 {
		return nil
	}
	var zero S
	sz := int(unsafe.Sizeof(zero))
	if len(data) < n*sz {
		panic("matrix: fromBytes payload too short")
	}
	return unsafe.Slice((*S)(unsafe.Pointer(&data[0])), n)
}

// destRanks returns the set of ranks owning at least one tile of view
// destView, the broadcast destination set derived from a sub-matrix
// view.
func destRanks[S tile.Scalar](destView *Matrix[S]) []int {
	seen := make(map[int]struct{})
	var out []int
	for i := 0; i < destView.Mt; i++ {
		for j := 0; j < destView.Nt; j++ {
			gi, gj := destView.toRoot(i, j)
			r := destView.tileOwnerRank(gi, gj)
			if _, ok := seen[r]; !ok {
				seen[r] = struct{}{}
				out = append(out, r)
			}
		}
	}
	return out
}

// TileBcast broadcasts tile (i, j) of the root matrix m from its owner
// to every process owning at least one tile of destView. Non-owning
// recipients cache the received bytes as a read-only tile replica at
// (i, j); the owner's call is a local no-op send to itself plus sends
// to every other destination rank.
func (m *Matrix[S]) TileBcast(ctx context.Context, i, j int, destView *Matrix[S], tag int64) error {
	gi, gj := m.toRoot(i, j)
	owner := m.tileOwnerRank(gi, gj)
	c := m.store.comm

	if owner == c.Rank() {
		t, ok := m.LocalTile(i, j)
		if !ok {
			return fmt.Errorf("matrix: TileBcast(%d,%d): owner has no local tile: %w", i, j, errs.ErrInvalidArgument)
		}
		dests := destRanks(destView)
		payload := toBytes(t.Data())
		if err := c.Bcast(ctx, tag, payload, dests); err != nil {
			return err
		}
		return nil
	}

	if !containsRank(destRanks(destView), c.Rank()) {
		return nil // this rank isn't a recipient of this broadcast
	}
	data, err := c.Recv(ctx, tag)
	if err != nil {
		return err
	}
	rows, cols := m.rowsOf(gi), m.colsOf(gj)
	buf := fromBytes[S](data, rows*cols)
	recv := tile.WrapBuffer[S](buf, rows, rows, cols, tile.ColumnMajor, tile.HostDevice)
	recv.ClearOrigin()
	m.setCachedTile(gi, gj, recv)
	return nil
}

// TileBcastMulti broadcasts tile (i, j) to the union of processes
// touched by every view in destViews, under a single tag — the
// panel-factor step's "send A(k,k) down the column and across the row
// with one tag" shape (getrf_nopiv.cc's single BcastList entry with two
// destination views).
func (m *Matrix[S]) TileBcastMulti(ctx context.Context, i, j int, destViews []*Matrix[S], tag int64) error {
	gi, gj := m.toRoot(i, j)
	owner := m.tileOwnerRank(gi, gj)
	c := m.store.comm

	if owner == c.Rank() {
		t, ok := m.LocalTile(i, j)
		if !ok {
			return fmt.Errorf("matrix: TileBcastMulti(%d,%d): owner has no local tile: %w", i, j, errs.ErrInvalidArgument)
		}
		seen := make(map[int]struct{})
		var dests []int
		for _, dv := range destViews {
			for _, r := range destRanks(dv) {
				if _, ok := seen[r]; !ok {
					seen[r] = struct{}{}
					dests = append(dests, r)
				}
			}
		}
		return c.Bcast(ctx, tag, toBytes(t.Data()), dests)
	}

	isDest := false
	for _, dv := range destViews {
		if containsRank(destRanks(dv), c.Rank()) {
			isDest = true
			break
		}
	}
	if !isDest {
		return nil
	}
	data, err := c.Recv(ctx, tag)
	if err != nil {
		return err
	}
	rows, cols := m.rowsOf(gi), m.colsOf(gj)
	buf := fromBytes[S](data, rows*cols)
	recv := tile.WrapBuffer[S](buf, rows, rows, cols, tile.ColumnMajor, tile.HostDevice)
	recv.ClearOrigin()
	m.setCachedTile(gi, gj, recv)
	return nil
}

func containsRank(ranks []int, r int) bool {
	for _, x := range ranks {
		if x == r {
			return true
		}
	}
	return false
}

// BcastRecord is one entry of a coalesced multicast (a listBcast):
// broadcast tile (I, J) of Src to every process touched by DestView,
// tagged Tag.
type BcastRecord[S tile.Scalar] struct {
	I, J     int
	DestView *Matrix[S]
	Tag      int64
}

// ListBcast runs a sequence of TileBcast calls in order, stopping at
// the first error: a coalesced multicast for a sequence of (src tile,
// dest views, tag) records.
func (m *Matrix[S]) ListBcast(ctx context.Context, list []BcastRecord[S]) error {
	for _, rec := range list {
		if err := m.TileBcast(ctx, rec.I, rec.J, rec.DestView, rec.Tag); err != nil {
			return fmt.Errorf("matrix: ListBcast tile(%d,%d) tag=%d: %w", rec.I, rec.J, rec.Tag, err)
		}
	}
	return nil
}

// ListBcastMT is the multithreaded variant of ListBcast: individual
// broadcasts may overlap or complete out of order, but each tile is
// still delivered intact. Distinct tags (enforced by the driver's tag
// discipline) make the records independent, so they fan out over
// goroutines with no additional synchronization beyond internal/comm's
// own per-(rank,tag) channel.
func (m *Matrix[S]) ListBcastMT(ctx context.Context, list []BcastRecord[S]) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(list))
	for _, rec := range list {
		wg.Add(1)
		go func(rec BcastRecord[S]) {
			defer wg.Done()
			if err := m.TileBcast(ctx, rec.I, rec.J, rec.DestView, rec.Tag); err != nil {
				errCh <- fmt.Errorf("matrix: ListBcastMT tile(%d,%d) tag=%d: %w", rec.I, rec.J, rec.Tag, err)
			}
		}(rec)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// BatchArrays holds the scheduler-visible device-batch descriptors a
// Devices-target kernel call issues against: parallel slices of tile
// handles for each batched operand, preallocated once per outer-loop
// iteration rather than per tile.
type BatchArrays[S tile.Scalar] struct {
	A, B, C [][]*tile.Tile[S]
}

// AllocateBatchArrays preallocates k batch slots, each holding up to bs
// tile handles per operand (A, B, C), for a device-batched kernel call.
func (m *Matrix[S]) AllocateBatchArrays(bs, k int) *BatchArrays[S] {
	ba := &BatchArrays[S]{
		A: make([][]*tile.Tile[S], k),
		B: make([][]*tile.Tile[S], k),
		C: make([][]*tile.Tile[S], k),
	}
	for i := 0; i < k; i++ {
		ba.A[i] = make([]*tile.Tile[S], 0, bs)
		ba.B[i] = make([]*tile.Tile[S], 0, bs)
		ba.C[i] = make([]*tile.Tile[S], 0, bs)
	}
	return ba
}

// ReserveDeviceWorkspace allocates count device-resident workspace
// tiles of shape (mb, nb) from the matrix's device arena, for use by a
// Devices-target kernel. It returns errs.ErrOutOfMemory (via the
// arena) if device memory is exhausted.
func (m *Matrix[S]) ReserveDeviceWorkspace(deviceArena *tile.Arena[S], count, mb, nb int) ([]*tile.Tile[S], error) {
	out := make([]*tile.Tile[S], 0, count)
	for i := 0; i < count; i++ {
		t, err := deviceArena.Allocate(mb, nb, tile.ColumnMajor)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
