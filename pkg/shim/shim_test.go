package shim

import (
	"testing"

	"github.com/dlattice/tessera/internal/comm"
	"github.com/dlattice/tessera/internal/kernel"
)

func diagDominant(n int) []float64 {
	a := make([]float64, n*n) // column-major
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			v := 0.0
			if i != j {
				v = 1.0 / float64(1+(i-j)*(i-j))
			}
			a[j*n+i] = v
		}
	}
	for i := 0; i < n; i++ {
		a[i*n+i] = float64(n) * 4
	}
	return a
}

func TestPGESVNoPivSingleProcessSucceeds(t *testing.T) {
	const n, mb = 8, 4
	a := diagDominant(n)

	grid := comm.NewGrid(1, 0)
	desc := Descriptor{Ctxt: 0, M: n, N: n, MB: mb, NB: mb, RSrc: 0, CSrc: 0, LLD: n}
	sg := StaticGrid{Comm: grid.Comm(0), P: 1, Q: 1}

	info, err := PGESVNoPiv[float64](desc, 1, 1, sg, a, kernel.HostTask)
	if err != nil {
		t.Fatalf("PGESVNoPiv: %v", err)
	}
	if info != 0 {
		t.Fatalf("info = %d, want 0 for a diagonally dominant matrix", info)
	}
}

func TestPGESVNoPivRejectsNonTileAlignedOffset(t *testing.T) {
	const n, mb = 8, 4
	a := diagDominant(n)

	grid := comm.NewGrid(1, 0)
	desc := Descriptor{Ctxt: 0, M: n, N: n, MB: mb, NB: mb, LLD: n}
	sg := StaticGrid{Comm: grid.Comm(0), P: 1, Q: 1}

	if _, err := PGESVNoPiv[float64](desc, 2, 1, sg, a, kernel.HostTask); err == nil {
		t.Fatal("expected an error for a non-tile-aligned ia")
	}
}

func TestPGESVNoPivReportsSingularInfoColumn(t *testing.T) {
	const n, mb = 4, 4
	a := make([]float64, n*n) // column-major, first two columns identical
	for i := 0; i < n; i++ {
		a[0*n+i] = 1
		a[1*n+i] = 1
		a[2*n+i] = float64(i + 1)
		a[3*n+i] = float64(2*i + 3)
	}

	grid := comm.NewGrid(1, 0)
	desc := Descriptor{Ctxt: 0, M: n, N: n, MB: mb, NB: mb, LLD: n}
	sg := StaticGrid{Comm: grid.Comm(0), P: 1, Q: 1}

	info, err := PGESVNoPiv[float64](desc, 1, 1, sg, a, kernel.HostTask)
	if err != nil {
		t.Fatalf("PGESVNoPiv: %v", err)
	}
	if info == 0 {
		t.Fatal("expected a nonzero INFO for a singular matrix")
	}
}

func TestStaticGridResolveRejectsUnconfigured(t *testing.T) {
	var sg StaticGrid
	if _, _, _, err := sg.Resolve(0); err == nil {
		t.Fatal("expected an error from an unconfigured StaticGrid")
	}
}
