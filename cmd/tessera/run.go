package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dlattice/tessera/internal/comm"
	"github.com/dlattice/tessera/internal/driver"
	"github.com/dlattice/tessera/internal/kernel"
	"github.com/dlattice/tessera/internal/logger"
	"github.com/dlattice/tessera/internal/matrix"
	"github.com/dlattice/tessera/internal/options"
	"github.com/dlattice/tessera/internal/tile"
)

func parseTarget(s string) (kernel.Target, error) {
	switch s {
	case "host", "":
		return kernel.HostTask, nil
	case "devices":
		return kernel.Devices, nil
	default:
		return 0, fmt.Errorf("unknown target %q (want host or devices)", s)
	}
}

// runCmd factors a matrix loaded from a flat file or a generated test
// case, one goroutine per process-grid rank sharing an in-process
// comm.Grid to simulate a multi-rank run within a single process.
func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Factor a matrix with unpivoted LU",
		Flags: append(commonMatrixFlags(), loggingFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyMatrixConfig(cmd, LoadConfig())
			log := buildLogger()
			ctx = logger.WithContext(ctx, log)

			tgt, err := parseTarget(target)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if nb == 0 {
				nb = mb
			}

			grid := comm.NewGrid(int(p*q), 0)
			mt := int((n + mb - 1) / mb)
			ntTiles := int((n + nb - 1) / nb)

			matrices := make([]*matrix.Matrix[float64], p*q)
			for r := int64(0); r < p*q; r++ {
				arena := tile.NewArena[float64](tile.HostDevice, 0)
				m, err := matrix.NewMatrix[float64](mt, ntTiles, int(mb), int(nb), int(p), int(q), grid.Comm(int(r)), arena)
				if err != nil {
					return cli.Exit(fmt.Sprintf("build matrix: %v", err), 1)
				}
				matrices[r] = m
			}
			if inputPath != "" {
				if err := loadMatrixFile(inputPath, matrices, int(n)); err != nil {
					return cli.Exit(fmt.Sprintf("load input: %v", err), 1)
				}
			} else {
				seedTestMatrix(matrices, int(n), seed)
			}

			log.Info("starting factorization", "n", n, "mb", mb, "nb", nb, "p", p, "q", q, "lookahead", lookahead, "target", tgt.String())
			start := time.Now()

			type outcome struct {
				rep *driver.Report
				err error
			}
			results := make(chan outcome, len(matrices))
			for _, m := range matrices {
				go func(m *matrix.Matrix[float64]) {
					rep, err := driver.GetrfNoPiv[float64](ctx, m, options.Map{
						options.Target:    tgt,
						options.Lookahead: int(lookahead),
					})
					results <- outcome{rep, err}
				}(m)
			}

			var totalBytesSent, totalBytesRecv int64
			var singular int
			for range matrices {
				o := <-results
				if o.err != nil {
					return cli.Exit(fmt.Sprintf("factorization failed: %v", o.err), 1)
				}
				totalBytesSent += o.rep.BytesSent
				totalBytesRecv += o.rep.BytesRecv
				singular += len(o.rep.Singular)
			}

			elapsed := time.Since(start)
			fmt.Printf("factored %dx%d matrix in %s (bytes sent=%d recv=%d, singular events=%d)\n",
				n, n, elapsed, totalBytesSent, totalBytesRecv, singular)
			return nil
		},
	}
}

func seedTestMatrix(matrices []*matrix.Matrix[float64], n int, seed int64) {
	state := uint64(seed) | 1
	next := func() float64 {
		state = state*6364136223846793005 + 1442695040888963407
		return float64(state>>11) / float64(1<<53)
	}

	for row := 0; row < n; row++ {
		rowVals := make([]float64, n)
		sum := 0.0
		for col := 0; col < n; col++ {
			if col == row {
				continue
			}
			rowVals[col] = next()*2 - 1
			sum += abs(rowVals[col])
		}
		rowVals[row] = sum + float64(n)
		for col := 0; col < n; col++ {
			setElement(matrices, row, col, rowVals[col])
		}
	}
}

func loadMatrixFile(path string, matrices []*matrix.Matrix[float64], n int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 8*n*n)
	if _, err := io.ReadFull(f, buf); err != nil {
		return fmt.Errorf("read %d bytes for a %dx%d float64 matrix: %w", len(buf), n, n, err)
	}
	for col := 0; col < n; col++ {
		for row := 0; row < n; row++ {
			off := 8 * (col*n + row)
			v := bytesToFloat64(buf[off : off+8])
			setElement(matrices, row, col, v)
		}
	}
	return nil
}

func setElement(matrices []*matrix.Matrix[float64], row, col int, v float64) {
	for _, m := range matrices {
		ti, tj := row/m.Mb, col/m.Nb
		if !m.TileIsLocal(ti, tj) {
			continue
		}
		t, ok := m.LocalTile(ti, tj)
		if !ok {
			continue
		}
		t.Set(row%m.Mb, col%m.Nb, v)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func bytesToFloat64(b []byte) float64 {
	var bits uint64
	for i := 7; i >= 0; i-- {
		bits = bits<<8 | uint64(b[i])
	}
	return math.Float64frombits(bits)
}
