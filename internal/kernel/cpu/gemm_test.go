package cpu

import (
	"math"
	"testing"

	"github.com/dlattice/tessera/internal/kernel"
	"github.com/dlattice/tessera/internal/tile"
)

func fillSeq(t *tile.Tile[float64], start float64) {
	v := start
	for i := 0; i < t.Rows; i++ {
		for j := 0; j < t.Cols; j++ {
			t.Set(i, j, v)
			v++
		}
	}
}

func naiveGemm(c, a, b *tile.Tile[float64], alpha, beta float64) *tile.Tile[float64] {
	out := tile.NewTile[float64](c.Rows, c.Cols, tile.HostDevice, tile.ColumnMajor)
	for i := 0; i < c.Rows; i++ {
		for j := 0; j < c.Cols; j++ {
			var sum float64
			for k := 0; k < a.Cols; k++ {
				sum += a.At(i, k) * b.At(k, j)
			}
			out.Set(i, j, alpha*sum+beta*c.At(i, j))
		}
	}
	return out
}

func assertClose(t *testing.T, got, want *tile.Tile[float64]) {
	t.Helper()
	for i := 0; i < want.Rows; i++ {
		for j := 0; j < want.Cols; j++ {
			if math.Abs(got.At(i, j)-want.At(i, j)) > 1e-9 {
				t.Fatalf("mismatch at (%d,%d): got %v, want %v", i, j, got.At(i, j), want.At(i, j))
			}
		}
	}
}

func TestGemmHostTaskMatchesNaive(t *testing.T) {
	a := tile.NewTile[float64](37, 41, tile.HostDevice, tile.ColumnMajor)
	b := tile.NewTile[float64](41, 29, tile.HostDevice, tile.ColumnMajor)
	c := tile.NewTile[float64](37, 29, tile.HostDevice, tile.ColumnMajor)
	fillSeq(a, 0.1)
	fillSeq(b, -0.2)
	fillSeq(c, 1.0)

	want := naiveGemm(c, a, b, 2.0, 0.5)
	Gemm(c, a, b, 2.0, 0.5, kernel.HostTask, 0)
	assertClose(t, c, want)
}

func TestGemmHostNestMatchesHostTask(t *testing.T) {
	a := tile.NewTile[float64](64, 48, tile.HostDevice, tile.ColumnMajor)
	b := tile.NewTile[float64](48, 55, tile.HostDevice, tile.ColumnMajor)
	c1 := tile.NewTile[float64](64, 55, tile.HostDevice, tile.ColumnMajor)
	c2 := tile.NewTile[float64](64, 55, tile.HostDevice, tile.ColumnMajor)
	fillSeq(a, 1.0)
	fillSeq(b, -0.5)
	fillSeq(c1, 3.0)
	fillSeq(c2, 3.0)

	Gemm(c1, a, b, 1.0, 1.0, kernel.HostTask, 0)
	Gemm(c2, a, b, 1.0, 1.0, kernel.HostNest, 4)
	assertClose(t, c2, c1)
}

func TestGemmBetaZeroIgnoresStaleC(t *testing.T) {
	a := tile.NewTile[float64](3, 2, tile.HostDevice, tile.ColumnMajor)
	b := tile.NewTile[float64](2, 3, tile.HostDevice, tile.ColumnMajor)
	c := tile.NewTile[float64](3, 3, tile.HostDevice, tile.ColumnMajor)
	fillSeq(a, 1)
	fillSeq(b, 1)
	c.Set(1, 1, math.NaN())

	Gemm(c, a, b, 1, 0, kernel.HostTask, 0)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.IsNaN(c.At(i, j)) {
				t.Fatalf("beta=0 should overwrite stale NaN at (%d,%d)", i, j)
			}
		}
	}
}

func TestGemmEmptyDimensionNoop(t *testing.T) {
	a := tile.NewTile[float64](0, 3, tile.HostDevice, tile.ColumnMajor)
	b := tile.NewTile[float64](3, 4, tile.HostDevice, tile.ColumnMajor)
	c := tile.NewTile[float64](0, 4, tile.HostDevice, tile.ColumnMajor)
	Gemm(c, a, b, 1, 1, kernel.HostTask, 0) // must not panic
}

func TestGemmComplexMatchesNaive(t *testing.T) {
	a := tile.NewTile[complex128](3, 3, tile.HostDevice, tile.ColumnMajor)
	b := tile.NewTile[complex128](3, 3, tile.HostDevice, tile.ColumnMajor)
	c := tile.NewTile[complex128](3, 3, tile.HostDevice, tile.ColumnMajor)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			a.Set(i, j, complex(float64(i+j), float64(i-j)))
			b.Set(i, j, complex(float64(i*j), 1))
			c.Set(i, j, complex(0, 0))
		}
	}

	Gemm(c, a, b, complex(1, 0), complex(0, 0), kernel.HostTask, 0)

	var want [3][3]complex128
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum complex128
			for k := 0; k < 3; k++ {
				sum += a.At(i, k) * b.At(k, j)
			}
			want[i][j] = sum
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if c.At(i, j) != want[i][j] {
				t.Fatalf("mismatch at (%d,%d): got %v, want %v", i, j, c.At(i, j), want[i][j])
			}
		}
	}
}
