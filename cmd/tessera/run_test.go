package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/dlattice/tessera/internal/comm"
	"github.com/dlattice/tessera/internal/kernel"
	"github.com/dlattice/tessera/internal/matrix"
	"github.com/dlattice/tessera/internal/tile"
)

func TestParseTarget(t *testing.T) {
	cases := map[string]kernel.Target{
		"host":    kernel.HostTask,
		"":        kernel.HostTask,
		"devices": kernel.Devices,
	}
	for in, want := range cases {
		got, err := parseTarget(in)
		if err != nil {
			t.Fatalf("parseTarget(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("parseTarget(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := parseTarget("gpu"); err == nil {
		t.Fatalf("expected an error for an unknown target")
	}
}

func TestBytesToFloat64RoundTrips(t *testing.T) {
	want := 3.14159265358979
	bits := math.Float64bits(want)
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(bits >> (8 * i))
	}
	got := bytesToFloat64(buf)
	if got != want {
		t.Fatalf("bytesToFloat64 round trip = %v, want %v", got, want)
	}
}

func TestSeedTestMatrixIsDiagonallyDominant(t *testing.T) {
	const n = 6
	grid := comm.NewGrid(1, 0)
	arena := tile.NewArena[float64](tile.HostDevice, 0)
	m, err := matrix.NewMatrix[float64](2, 2, 4, 4, 1, 1, grid.Comm(0), arena)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	seedTestMatrix([]*matrix.Matrix[float64]{m}, n, 42)

	for row := 0; row < n; row++ {
		diag := 0.0
		offSum := 0.0
		for col := 0; col < n; col++ {
			ti, tj := row/m.Mb, col/m.Nb
			tl, ok := m.LocalTile(ti, tj)
			if !ok {
				t.Fatalf("tile (%d,%d) not local on a single-rank grid", ti, tj)
			}
			v := tl.At(row%m.Mb, col%m.Nb)
			if col == row {
				diag = v
			} else {
				offSum += abs(v)
			}
		}
		if diag <= offSum {
			t.Fatalf("row %d is not diagonally dominant: diag=%v offSum=%v", row, diag, offSum)
		}
	}
}

func TestLoadMatrixFileReadsColumnMajorFloat64(t *testing.T) {
	const n = 2
	want := [][]float64{
		{1, 3},
		{2, 4},
	}
	path := filepath.Join(t.TempDir(), "m.bin")
	buf := make([]byte, 8*n*n)
	idx := 0
	for col := 0; col < n; col++ {
		for row := 0; row < n; row++ {
			bits := math.Float64bits(want[row][col])
			for b := 0; b < 8; b++ {
				buf[idx] = byte(bits >> (8 * b))
				idx++
			}
		}
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write matrix file: %v", err)
	}

	grid := comm.NewGrid(1, 0)
	arena := tile.NewArena[float64](tile.HostDevice, 0)
	m, err := matrix.NewMatrix[float64](1, 1, n, n, 1, 1, grid.Comm(0), arena)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	if err := loadMatrixFile(path, []*matrix.Matrix[float64]{m}, n); err != nil {
		t.Fatalf("loadMatrixFile: %v", err)
	}

	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			tl, ok := m.LocalTile(0, 0)
			if !ok {
				t.Fatalf("tile (0,0) not local")
			}
			got := tl.At(row, col)
			if got != want[row][col] {
				t.Fatalf("element (%d,%d) = %v, want %v", row, col, got, want[row][col])
			}
		}
	}
}

func TestLoadMatrixFileRejectsShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("write short file: %v", err)
	}

	grid := comm.NewGrid(1, 0)
	arena := tile.NewArena[float64](tile.HostDevice, 0)
	m, err := matrix.NewMatrix[float64](1, 1, 2, 2, 1, 1, grid.Comm(0), arena)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	if err := loadMatrixFile(path, []*matrix.Matrix[float64]{m}, 2); err == nil {
		t.Fatalf("expected an error for a truncated matrix file")
	}
}
