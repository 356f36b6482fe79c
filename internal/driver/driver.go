// Package driver implements the outer right-looking LU-without-pivoting
// loop: for each panel column k it enqueues panel, panel update, panel
// broadcast, lookahead, trailing-update, and release tasks against the
// column[*]/diag[*]/mpi_bandwidth token arrays, and lets
// internal/scheduler's Pool run them in dependency order. Grounded
// directly on original_source/src/getrf_nopiv.cc's task structure —
// the verbatim step shape, tag assignments, and token split are carried
// unchanged.
package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/dlattice/tessera/internal/device"
	"github.com/dlattice/tessera/internal/diag"
	"github.com/dlattice/tessera/internal/errs"
	"github.com/dlattice/tessera/internal/kernel"
	"github.com/dlattice/tessera/internal/kernel/cpu"
	"github.com/dlattice/tessera/internal/logger"
	"github.com/dlattice/tessera/internal/matrix"
	"github.com/dlattice/tessera/internal/options"
	"github.com/dlattice/tessera/internal/scheduler"
	"github.com/dlattice/tessera/internal/tile"
)

// Report carries the diagnostics-channel contents of a GetrfNoPiv call:
// singular-column observations, bandwidth moved by this rank, and wall
// time. An empty Singular slice is the ordinary, non-singular-input
// case. getrf_nopiv.cc's own "TODO: return value"
// comment on the equivalent path is resolved here as a diagnostics
// channel, never an error.
type Report struct {
	Singular  []diag.SingularEvent
	BytesSent int64
	BytesRecv int64
	Elapsed   time.Duration
}

// GetrfNoPiv factors A in place as L*U, without pivoting, following the
// right-looking Level-3 BLAS algorithm. A represents this
// process's view of the distributed matrix; every rank in the
// communicator must call GetrfNoPiv concurrently against its own view
// of the same logical matrix for the broadcasts to resolve.
func GetrfNoPiv[S tile.Scalar](ctx context.Context, A *matrix.Matrix[S], opts options.Map) (*Report, error) {
	resolved, err := options.Resolve(opts)
	if err != nil {
		return nil, err
	}

	guard := kernel.ThreadCountGuard{}
	guard.Clamp(1)
	defer guard.Restore()

	log := logger.FromContext(ctx)
	rec := diag.NewRecorder()

	mt, nt := A.Mt, A.Nt
	minMtNt := min(mt, nt)
	if minMtNt == 0 {
		return &Report{}, nil
	}

	workers := max(resolved.MaxPanelThreads, resolved.Lookahead+2)
	pool, err := scheduler.NewPool(workers, resolved.Lookahead, log)
	if err != nil {
		return nil, err
	}

	column := make([]*scheduler.Token, nt)
	diagTok := make([]*scheduler.Token, nt)
	for j := 0; j < nt; j++ {
		column[j] = scheduler.NewToken(fmt.Sprintf("column[%d]", j))
		diagTok[j] = scheduler.NewToken(fmt.Sprintf("diag[%d]", j))
	}
	bandwidth := scheduler.NewToken("mpi_bandwidth")

	start := time.Now()
	d := &driverState[S]{
		A: A, opts: resolved, pool: pool, rec: rec, log: log,
		adapter: cpu.HostAdapter[S]{Target: resolved.Target},
		column:  column, diag: diagTok, bandwidth: bandwidth,
		mt: mt, nt: nt,
	}
	for k := 0; k < minMtNt; k++ {
		d.submitColumn(k)
	}

	if err := pool.Wait(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("driver: getrf_nopiv: %w", err)
	}
	pool.Close()

	if err := A.TileUpdateAllOrigin(); err != nil {
		return nil, err
	}
	A.ClearWorkspace()

	rec.AddBytesSent(A.Comm().BytesSent())
	rec.AddBytesRecv(A.Comm().BytesRecv())
	snap := rec.Snapshot()
	return &Report{
		Singular:  snap.Singular,
		BytesSent: snap.BytesSent,
		BytesRecv: snap.BytesRecv,
		Elapsed:   time.Since(start),
	}, nil
}

// driverState bundles the per-call state every per-column task closure
// captures, so submitColumn doesn't need a long parameter list at every
// call site.
type driverState[S tile.Scalar] struct {
	A       *matrix.Matrix[S]
	opts    options.Resolved
	pool    *scheduler.Pool
	rec     *diag.Recorder
	log     logger.Logger
	adapter kernel.Adapter[S]

	column, diag []*scheduler.Token
	bandwidth    *scheduler.Token

	mt, nt int
}

// submitColumn enqueues every task of iteration k, mirroring
// getrf_nopiv.cc's single #pragma omp master loop body task by task.
func (d *driverState[S]) submitColumn(k int) {
	d.pool.Submit(&scheduler.Task{
		Name:     fmt.Sprintf("panel[%d]", k),
		InOut:    []*scheduler.Token{d.column[k]},
		Out:      []*scheduler.Token{d.diag[k]},
		Priority: kernel.High,
		Fn: func(ctx context.Context) error {
			return d.panel(ctx, k)
		},
	})

	d.pool.Submit(&scheduler.Task{
		Name:     fmt.Sprintf("panel_update[%d]", k),
		InOut:    []*scheduler.Token{d.column[k]},
		In:       []*scheduler.Token{d.diag[k]},
		Priority: kernel.High,
		Fn: func(ctx context.Context) error {
			return d.panelUpdate(ctx, k)
		},
	})

	d.pool.Submit(&scheduler.Task{
		Name:     fmt.Sprintf("panel_bcast[%d]", k),
		InOut:    []*scheduler.Token{d.column[k], d.bandwidth},
		Priority: kernel.High,
		Fn: func(ctx context.Context) error {
			return d.panelBcast(ctx, k)
		},
	})

	lookaheadEnd := min(k+1+d.opts.Lookahead, d.nt)
	for j := k + 1; j < lookaheadEnd; j++ {
		j := j
		d.pool.Submit(&scheduler.Task{
			Name:     fmt.Sprintf("lookahead_trsm[%d,%d]", k, j),
			In:       []*scheduler.Token{d.diag[k]},
			InOut:    []*scheduler.Token{d.column[j]},
			Priority: kernel.High,
			Fn: func(ctx context.Context) error {
				return d.lookaheadTrsm(ctx, k, j)
			},
		})
		d.pool.Submit(&scheduler.Task{
			Name:     fmt.Sprintf("lookahead_gemm[%d,%d]", k, j),
			In:       []*scheduler.Token{d.column[k]},
			InOut:    []*scheduler.Token{d.column[j]},
			Priority: kernel.High,
			Fn: func(ctx context.Context) error {
				return d.lookaheadGemm(ctx, k, j)
			},
		})
	}

	if lookaheadEnd < d.nt {
		d.pool.Submit(&scheduler.Task{
			Name:  fmt.Sprintf("trailing_trsm[%d]", k),
			In:    []*scheduler.Token{d.diag[k]},
			InOut: []*scheduler.Token{d.column[lookaheadEnd], d.column[d.nt-1]},
			Fn: func(ctx context.Context) error {
				return d.trailingTrsm(ctx, k, lookaheadEnd)
			},
		})
		d.pool.Submit(&scheduler.Task{
			Name:  fmt.Sprintf("trailing_bcast[%d]", k),
			InOut: []*scheduler.Token{d.column[lookaheadEnd], d.column[d.nt-1], d.bandwidth},
			Fn: func(ctx context.Context) error {
				return d.trailingBcast(ctx, k, lookaheadEnd)
			},
		})
		d.pool.Submit(&scheduler.Task{
			Name:  fmt.Sprintf("trailing_gemm[%d]", k),
			In:    []*scheduler.Token{d.column[k]},
			InOut: []*scheduler.Token{d.column[lookaheadEnd], d.column[d.nt-1]},
			Fn: func(ctx context.Context) error {
				return d.trailingGemm(ctx, k, lookaheadEnd)
			},
		})
	}

	// Release step, split into two sub-steps exactly as the device
	// specialization in getrf_nopiv.cc does: releasing the diagonal
	// tile once no further panel references it,
	// and releasing each owned panel-column tile once its row broadcast
	// has completed.
	d.pool.Submit(&scheduler.Task{
		Name:  fmt.Sprintf("release_diag[%d]", k),
		InOut: []*scheduler.Token{d.diag[k]},
		Fn: func(ctx context.Context) error {
			return d.releaseDiag(k)
		},
	})
	d.pool.Submit(&scheduler.Task{
		Name:  fmt.Sprintf("release_column[%d]", k),
		InOut: []*scheduler.Token{d.column[k]},
		Fn: func(ctx context.Context) error {
			return d.releaseColumn(k)
		},
	})
}

// panel factors the diagonal tile A(k,k) in place (unpivoted LU) if
// this rank owns it, then broadcasts it down the remaining column and
// across the remaining row of the panel under a single tag (tag = k).
func (d *driverState[S]) panel(ctx context.Context, k int) error {
	A := d.A
	if A.TileIsLocal(k, k) {
		t, ok := A.LocalTile(k, k)
		if !ok {
			return fmt.Errorf("driver: panel[%d]: owner has no local diagonal tile: %w", k, errs.ErrInvalidArgument)
		}
		cols := d.adapter.GetrfNoPiv(t, d.opts.InnerBlocking, d.opts.MaxPanelThreads)
		for _, c := range cols {
			d.rec.RecordSingular(k, k, k, c)
		}
	}

	var dests []*matrix.Matrix[S]
	if k+1 < d.mt {
		below, err := A.Sub(k+1, d.mt, k, k+1)
		if err != nil {
			return err
		}
		dests = append(dests, below)
	}
	if k+1 < d.nt {
		right, err := A.Sub(k, k+1, k+1, d.nt)
		if err != nil {
			return err
		}
		dests = append(dests, right)
	}
	if len(dests) == 0 {
		return nil
	}
	return A.TileBcastMulti(ctx, k, k, dests, int64(k))
}

// panelUpdate solves A(k,k) * A(k+1:mt-1,k)^T-shaped right-trsm: every
// owned tile below the diagonal is scaled by the upper-triangular
// factor of A(k,k), per getrf_nopiv.cc's Side::Right/Upper/NonUnit
// trsm.
func (d *driverState[S]) panelUpdate(ctx context.Context, k int) error {
	A := d.A
	akk, ok := A.LocalTile(k, k)
	if !ok {
		return nil // diagonal not yet resident on this rank; nothing owned below to update
	}
	var ts, akks []*tile.Tile[S]
	for i := k + 1; i < d.mt; i++ {
		if !A.TileIsLocal(i, k) {
			continue
		}
		t, ok := A.LocalTile(i, k)
		if !ok {
			continue
		}
		ts = append(ts, t)
		akks = append(akks, akk)
	}
	d.dispatchTrsmBatch(kernel.Right, kernel.Upper, kernel.NonUnit, S(1), akks, ts)
	return nil
}

// panelBcast sends each owned panel tile A(i,k), i>k, across its row
// A(i,k+1:nt-1), tagged by row index i — the disjoint-from-everything
// panel-row tag space.
func (d *driverState[S]) panelBcast(ctx context.Context, k int) error {
	A := d.A
	for i := k + 1; i < d.mt; i++ {
		if k+1 >= d.nt {
			break
		}
		dest, err := A.Sub(i, i+1, k+1, d.nt)
		if err != nil {
			return err
		}
		if err := A.TileBcast(ctx, i, k, dest, int64(i)); err != nil {
			return err
		}
	}
	return nil
}

// lookaheadTrsm solves A(k,k) * A(k,j) = A(k,j) (Side::Left, Lower,
// Unit) if this rank owns A(k,j), then sends the result down column j,
// tagged j (never collides with the panel-row tag space because it
// tags a destination column, not a source row).
func (d *driverState[S]) lookaheadTrsm(ctx context.Context, k, j int) error {
	A := d.A
	if A.TileIsLocal(k, j) {
		akk, ok := A.LocalTile(k, k)
		if !ok {
			return fmt.Errorf("driver: lookahead_trsm[%d,%d]: diagonal not resident: %w", k, j, errs.ErrInvalidArgument)
		}
		akj, ok := A.LocalTile(k, j)
		if !ok {
			return fmt.Errorf("driver: lookahead_trsm[%d,%d]: panel tile not resident: %w", k, j, errs.ErrInvalidArgument)
		}
		cpu.Trsm(kernel.Left, kernel.Lower, kernel.Unit, S(1), akk, akj, d.opts.Target, d.opts.MaxPanelThreads)
	}
	if k+1 >= d.mt {
		return nil
	}
	dest, err := A.Sub(k+1, d.mt, j, j+1)
	if err != nil {
		return err
	}
	return A.TileBcast(ctx, k, j, dest, int64(j))
}

// lookaheadGemm applies the rank-mb trailing update A(k+1:mt-1,j) -=
// A(k+1:mt-1,k) * A(k,j) to every tile this rank owns in column j.
func (d *driverState[S]) lookaheadGemm(ctx context.Context, k, j int) error {
	A := d.A
	akj, ok := A.LocalTile(k, j)
	if !ok {
		return nil
	}
	var cs, aiks, akjs []*tile.Tile[S]
	for i := k + 1; i < d.mt; i++ {
		if !A.TileIsLocal(i, j) {
			continue
		}
		aik, ok := A.LocalTile(i, k)
		if !ok {
			continue
		}
		cij, ok := A.LocalTile(i, j)
		if !ok {
			continue
		}
		cs = append(cs, cij)
		aiks = append(aiks, aik)
		akjs = append(akjs, akj)
	}
	d.dispatchGemmBatch(cs, aiks, akjs, S(-1), S(1))
	return nil
}

// trailingTrsm solves A(k,k) * A(k,j) = A(k,j) for every trailing
// column j in [kl, nt), where kl = k+1+lookahead, on tiles this rank
// owns.
func (d *driverState[S]) trailingTrsm(ctx context.Context, k, kl int) error {
	A := d.A
	akk, ok := A.LocalTile(k, k)
	if !ok {
		return nil
	}
	var akks, akjs []*tile.Tile[S]
	for j := kl; j < d.nt; j++ {
		if !A.TileIsLocal(k, j) {
			continue
		}
		akj, ok := A.LocalTile(k, j)
		if !ok {
			continue
		}
		akks = append(akks, akk)
		akjs = append(akjs, akj)
	}
	d.dispatchTrsmBatch(kernel.Left, kernel.Lower, kernel.Unit, S(1), akks, akjs)
	return nil
}

// trailingBcast sends A(k,j) down column j for every trailing column,
// tagged j+Mt so the tag space is disjoint from the panel-row
// broadcasts of this same iteration.
func (d *driverState[S]) trailingBcast(ctx context.Context, k, kl int) error {
	A := d.A
	if k+1 >= d.mt {
		return nil
	}
	for j := kl; j < d.nt; j++ {
		dest, err := A.Sub(k+1, d.mt, j, j+1)
		if err != nil {
			return err
		}
		if err := A.TileBcast(ctx, k, j, dest, int64(j+d.mt)); err != nil {
			return err
		}
	}
	return nil
}

// trailingGemm applies the rank-mb trailing update to every tile this
// rank owns in the trailing block [k+1:mt-1] x [kl:nt-1].
func (d *driverState[S]) trailingGemm(ctx context.Context, k, kl int) error {
	A := d.A
	var cs, aiks, akjs []*tile.Tile[S]
	for j := kl; j < d.nt; j++ {
		akj, ok := A.LocalTile(k, j)
		if !ok {
			continue
		}
		for i := k + 1; i < d.mt; i++ {
			if !A.TileIsLocal(i, j) {
				continue
			}
			aik, ok := A.LocalTile(i, k)
			if !ok {
				continue
			}
			cij, ok := A.LocalTile(i, j)
			if !ok {
				continue
			}
			cs = append(cs, cij)
			aiks = append(aiks, aik)
			akjs = append(akjs, akj)
		}
	}
	d.dispatchGemmBatch(cs, aiks, akjs, S(-1), S(1))
	return nil
}

// releaseDiag releases this rank's hold on the diagonal tile once no
// further panel will reference it.
func (d *driverState[S]) releaseDiag(k int) error {
	A := d.A
	if !A.TileIsLocal(k, k) || k+1 >= d.nt {
		return nil
	}
	t, ok := A.LocalTile(k, k)
	if !ok {
		return nil
	}
	t.ReleaseHold()
	return nil
}

// releaseColumn pulls every owned panel-column tile's origin up to date
// and releases its hold, once that tile's row broadcast has completed.
func (d *driverState[S]) releaseColumn(k int) error {
	A := d.A
	for i := k + 1; i < d.mt; i++ {
		if !A.TileIsLocal(i, k) {
			continue
		}
		if err := A.TileUpdateOrigin(i, k); err != nil {
			return err
		}
		t, ok := A.LocalTile(i, k)
		if !ok {
			continue
		}
		t.ReleaseHold()
	}
	return nil
}

// dispatchGemmBatch applies Gemm across a batch of independent tile
// triples sharing one alpha/beta. HostTask and HostNest dispatch each
// triple individually through the bound adapter (HostNest fans out
// within each call via parallelRange); HostBatch and Devices route the
// whole batch through cpu.GemmBatch's collect-then-dispatch path via
// internal/matrix's BatchArrays instead of one goroutine fan-out per
// tile pair. Devices additionally rounds the batch across
// device.Count() accelerators and reserves per-device workspace when
// any are present, falling back to the host batch path otherwise —
// actual arithmetic always runs on the host, since no on-device compute
// kernel exists in this tree (see DESIGN.md); the device path here
// exercises residency bookkeeping only.
func (d *driverState[S]) dispatchGemmBatch(c, a, b []*tile.Tile[S], alpha, beta S) {
	if len(c) == 0 {
		return
	}
	switch d.opts.Target {
	case kernel.HostTask, kernel.HostNest:
		for i := range c {
			d.adapter.Gemm(c[i], a[i], b[i], alpha, beta, d.opts.MaxPanelThreads)
		}
		return
	case kernel.Devices:
		if n := device.Count(); n > 0 {
			d.dispatchDeviceGemmBatch(n, c, a, b, alpha, beta)
			return
		}
	}
	ba := d.A.AllocateBatchArrays(len(c), 1)
	ba.A[0] = append(ba.A[0], a...)
	ba.B[0] = append(ba.B[0], b...)
	ba.C[0] = append(ba.C[0], c...)
	cpu.GemmBatch(ba.C[0], ba.A[0], ba.B[0], alpha, beta, d.opts.MaxPanelThreads)
}

// dispatchDeviceGemmBatch rounds a Gemm batch across n devices, opening
// a device.Table and reserving per-device workspace (via
// Matrix.ReserveDeviceWorkspace) for each device's share before running
// that share through cpu.GemmBatch. Falls back to the single-slot host
// batch path if the device backend fails to open. It is only called
// when device.Count() > 0.
func (d *driverState[S]) dispatchDeviceGemmBatch(n int, c, a, b []*tile.Tile[S], alpha, beta S) {
	tbl, err := device.NewTable()
	if err != nil {
		ba := d.A.AllocateBatchArrays(len(c), 1)
		ba.A[0] = append(ba.A[0], a...)
		ba.B[0] = append(ba.B[0], b...)
		ba.C[0] = append(ba.C[0], c...)
		cpu.GemmBatch(ba.C[0], ba.A[0], ba.B[0], alpha, beta, d.opts.MaxPanelThreads)
		return
	}
	defer tbl.Close()

	ba := d.A.AllocateBatchArrays(len(c), n)
	for i := range c {
		slot := i % n
		ba.A[slot] = append(ba.A[slot], a[i])
		ba.B[slot] = append(ba.B[slot], b[i])
		ba.C[slot] = append(ba.C[slot], c[i])
	}
	for slot := 0; slot < n; slot++ {
		if len(ba.C[slot]) == 0 {
			continue
		}
		arena := tile.NewArena[S](slot, 0)
		if ws, err := d.A.ReserveDeviceWorkspace(arena, len(ba.C[slot]), d.A.Mb, d.A.Nb); err == nil {
			for _, w := range ws {
				arena.Free(w)
			}
		}
		cpu.GemmBatch(ba.C[slot], ba.A[slot], ba.B[slot], alpha, beta, d.opts.MaxPanelThreads)
	}
}

// dispatchTrsmBatch is dispatchGemmBatch's Trsm counterpart. Trsm only
// has two tile operands per call, so it batches over plain slices rather
// than Matrix.BatchArrays (which is shaped for Gemm's three operands).
func (d *driverState[S]) dispatchTrsmBatch(side kernel.Side, uplo kernel.Uplo, diag kernel.Diag, alpha S, t, b []*tile.Tile[S]) {
	if len(t) == 0 {
		return
	}
	switch d.opts.Target {
	case kernel.HostTask, kernel.HostNest:
		for i := range t {
			d.adapter.Trsm(side, uplo, diag, alpha, t[i], b[i], d.opts.MaxPanelThreads)
		}
		return
	case kernel.Devices:
		if n := device.Count(); n > 0 {
			d.dispatchDeviceTrsmBatch(n, side, uplo, diag, alpha, t, b)
			return
		}
	}
	cpu.TrsmBatch(side, uplo, diag, alpha, t, b, d.opts.MaxPanelThreads)
}

// dispatchDeviceTrsmBatch is dispatchDeviceGemmBatch's Trsm counterpart.
func (d *driverState[S]) dispatchDeviceTrsmBatch(n int, side kernel.Side, uplo kernel.Uplo, diag kernel.Diag, alpha S, t, b []*tile.Tile[S]) {
	tbl, err := device.NewTable()
	if err != nil {
		cpu.TrsmBatch(side, uplo, diag, alpha, t, b, d.opts.MaxPanelThreads)
		return
	}
	defer tbl.Close()

	tSlots := make([][]*tile.Tile[S], n)
	bSlots := make([][]*tile.Tile[S], n)
	for i := range t {
		slot := i % n
		tSlots[slot] = append(tSlots[slot], t[i])
		bSlots[slot] = append(bSlots[slot], b[i])
	}
	for slot := 0; slot < n; slot++ {
		if len(tSlots[slot]) == 0 {
			continue
		}
		arena := tile.NewArena[S](slot, 0)
		if ws, err := d.A.ReserveDeviceWorkspace(arena, len(tSlots[slot]), d.A.Mb, d.A.Nb); err == nil {
			for _, w := range ws {
				arena.Free(w)
			}
		}
		cpu.TrsmBatch(side, uplo, diag, alpha, tSlots[slot], bSlots[slot], d.opts.MaxPanelThreads)
	}
}
