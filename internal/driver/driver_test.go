package driver

import (
	"context"
	"math"
	"testing"

	"github.com/dlattice/tessera/internal/comm"
	"github.com/dlattice/tessera/internal/kernel"
	"github.com/dlattice/tessera/internal/matrix"
	"github.com/dlattice/tessera/internal/options"
	"github.com/dlattice/tessera/internal/tile"
)

// lcg is a tiny deterministic pseudo-random source so tests don't
// depend on math/rand's seeding behavior across Go versions.
type lcg struct{ state uint64 }

func (l *lcg) next() float64 {
	l.state = l.state*6364136223846793005 + 1442695040888963407
	return float64(l.state>>11) / float64(1<<53)
}

// diagonallyDominant builds an n x n real64 matrix that is guaranteed
// to have nonzero leading principal minors, so unpivoted LU never hits
// a zero pivot.
func diagonallyDominant(n int, seed uint64) [][]float64 {
	rng := &lcg{state: seed}
	a := make([][]float64, n)
	for i := range a {
		a[i] = make([]float64, n)
		sum := 0.0
		for j := range a[i] {
			if i == j {
				continue
			}
			a[i][j] = rng.next()*2 - 1
			sum += math.Abs(a[i][j])
		}
		a[i][i] = sum + float64(n) // strictly diagonally dominant
	}
	return a
}

func fillOwnedTiles(t *testing.T, m *matrix.Matrix[float64], a [][]float64) {
	t.Helper()
	for i := 0; i < m.Mt; i++ {
		for j := 0; j < m.Nt; j++ {
			if !m.TileIsLocal(i, j) {
				continue
			}
			tl, ok := m.LocalTile(i, j)
			if !ok {
				t.Fatalf("owned tile (%d,%d) missing", i, j)
			}
			for r := 0; r < tl.Rows; r++ {
				for c := 0; c < tl.Cols; c++ {
					gr, gc := i*m.Mb+r, j*m.Nb+c
					tl.Set(r, c, a[gr][gc])
				}
			}
		}
	}
}

// reconstructLU multiplies the stored L (unit lower, below diagonal)
// and U (upper, including diagonal) of the factored matrix and returns
// the product, reading each tile from whichever rank's store owns it.
func reconstructLU(mg, ng int, views ...*matrix.Matrix[float64]) [][]float64 {
	lu := make([][]float64, mg)
	for i := range lu {
		lu[i] = make([]float64, ng)
	}

	at := func(r, c int) float64 {
		mbSample := views[0]
		ti, tj := r/mbSample.Mb, c/mbSample.Nb
		for _, v := range views {
			if v.TileIsLocal(ti, tj) {
				tl, ok := v.LocalTile(ti, tj)
				if !ok {
					return 0
				}
				return tl.At(r%mbSample.Mb, c%mbSample.Nb)
			}
		}
		return 0
	}

	n := min(mg, ng)
	for i := 0; i < mg; i++ {
		for j := 0; j < ng; j++ {
			sum := 0.0
			for k := 0; k < n && k <= i && k <= j; k++ {
				l := 1.0
				if k != i {
					l = at(i, k)
				}
				u := at(k, j)
				sum += l * u
			}
			lu[i][j] = sum
		}
	}
	return lu
}

func maxAbsDiff(a, b [][]float64) float64 {
	m := 0.0
	for i := range a {
		for j := range a[i] {
			d := math.Abs(a[i][j] - b[i][j])
			if d > m {
				m = d
			}
		}
	}
	return m
}

func TestGetrfNoPivSingleProcessReconstructsOriginal(t *testing.T) {
	const mt, nt, mb = 3, 3, 4
	n := mt * mb
	a := diagonallyDominant(n, 12345)

	grid := comm.NewGrid(1, 0)
	arena := tile.NewArena[float64](tile.HostDevice, 0)
	m, err := matrix.NewMatrix[float64](mt, nt, mb, mb, 1, 1, grid.Comm(0), arena)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	fillOwnedTiles(t, m, a)

	rep, err := GetrfNoPiv(context.Background(), m, options.Map{
		options.Lookahead: 1,
		options.Target:    kernel.HostTask,
	})
	if err != nil {
		t.Fatalf("GetrfNoPiv: %v", err)
	}
	if len(rep.Singular) != 0 {
		t.Fatalf("unexpected singular events on a diagonally dominant matrix: %+v", rep.Singular)
	}

	got := reconstructLU(n, n, m)
	if d := maxAbsDiff(got, a); d > 1e-8 {
		t.Fatalf("max|L*U - A| = %v, want <= 1e-8", d)
	}
}

func TestGetrfNoPivTwoProcessBlockCyclic(t *testing.T) {
	const p, q, mt, nt, mb = 1, 2, 4, 4, 4
	n := mt * mb
	a := diagonallyDominant(n, 777)

	grid := comm.NewGrid(p*q, 0)
	arena0 := tile.NewArena[float64](tile.HostDevice, 0)
	arena1 := tile.NewArena[float64](tile.HostDevice, 0)

	m0, err := matrix.NewMatrix[float64](mt, nt, mb, mb, p, q, grid.Comm(0), arena0)
	if err != nil {
		t.Fatalf("NewMatrix rank 0: %v", err)
	}
	m1, err := matrix.NewMatrix[float64](mt, nt, mb, mb, p, q, grid.Comm(1), arena1)
	if err != nil {
		t.Fatalf("NewMatrix rank 1: %v", err)
	}
	fillOwnedTiles(t, m0, a)
	fillOwnedTiles(t, m1, a)

	type result struct {
		rep *Report
		err error
	}
	results := make(chan result, 2)
	run := func(m *matrix.Matrix[float64]) {
		rep, err := GetrfNoPiv(context.Background(), m, options.Map{
			options.Lookahead: 1,
			options.Target:    kernel.HostTask,
		})
		results <- result{rep, err}
	}
	go run(m0)
	go run(m1)

	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("GetrfNoPiv: %v", r.err)
		}
	}

	got := reconstructLU(n, n, m0, m1)
	if d := maxAbsDiff(got, a); d > 1e-8 {
		t.Fatalf("max|L*U - A| = %v, want <= 1e-8", d)
	}
}

func TestGetrfNoPivReportsSingularColumn(t *testing.T) {
	const mb = 2
	a := [][]float64{{2, 4}, {2, 4}}

	grid := comm.NewGrid(1, 0)
	arena := tile.NewArena[float64](tile.HostDevice, 0)
	m, err := matrix.NewMatrix[float64](1, 1, mb, mb, 1, 1, grid.Comm(0), arena)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	fillOwnedTiles(t, m, a)

	rep, err := GetrfNoPiv(context.Background(), m, options.Map{options.InnerBlocking: mb})
	if err != nil {
		t.Fatalf("GetrfNoPiv: %v", err)
	}
	if len(rep.Singular) != 1 {
		t.Fatalf("Singular = %+v, want exactly one event", rep.Singular)
	}
}

func TestGetrfNoPivEmptyMatrixNoop(t *testing.T) {
	grid := comm.NewGrid(1, 0)
	arena := tile.NewArena[float64](tile.HostDevice, 0)
	m, err := matrix.NewMatrix[float64](3, 3, 4, 4, 1, 1, grid.Comm(0), arena)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	// An empty row range yields a valid Mt=0 view over a nonzero-sized
	// matrix, which is the degenerate shape GetrfNoPiv's minMtNt == 0
	// no-op check actually guards against — NewMatrix itself rejects
	// mt == 0 outright, so that shape can never reach GetrfNoPiv directly.
	empty, err := m.Sub(0, 0, 0, 3)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}

	rep, err := GetrfNoPiv(context.Background(), empty, nil)
	if err != nil {
		t.Fatalf("GetrfNoPiv: %v", err)
	}
	if len(rep.Singular) != 0 {
		t.Fatalf("expected no singular events on an empty matrix, got %+v", rep.Singular)
	}
}
