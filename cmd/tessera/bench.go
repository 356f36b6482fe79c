package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
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

// benchCmd sweeps lookahead/target combinations over one generated
// test matrix.
func benchCmd() *cli.Command {
	var lookaheads string
	var targets string

	flags := append(commonMatrixFlags(), loggingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "lookaheads",
			Usage:       "comma-separated lookahead depths to sweep",
			Value:       "0,1,2",
			Destination: &lookaheads,
		},
		&cli.StringFlag{
			Name:        "targets",
			Usage:       "comma-separated kernel targets to sweep (host, devices)",
			Value:       "host",
			Destination: &targets,
		},
	)

	return &cli.Command{
		Name:  "bench",
		Usage: "Sweep lookahead/target combinations over one test matrix",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyMatrixConfig(cmd, LoadConfig())
			log := buildLogger()
			ctx = logger.WithContext(ctx, log)

			if nb == 0 {
				nb = mb
			}
			lhValues, err := splitInts(lookaheads)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			tgtValues, err := splitTargets(targets)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			mt := int((n + mb - 1) / mb)
			ntTiles := int((n + nb - 1) / nb)

			fmt.Printf("%-10s %-10s %12s %14s %14s\n", "lookahead", "target", "elapsed", "bytes_sent", "bytes_recv")
			for _, lh := range lhValues {
				for _, tgt := range tgtValues {
					grid := comm.NewGrid(int(p*q), 0)
					arena := tile.NewArena[float64](tile.HostDevice, 0)
					m, err := matrix.NewMatrix[float64](mt, ntTiles, int(mb), int(nb), int(p), int(q), grid.Comm(0), arena)
					if err != nil {
						return cli.Exit(fmt.Sprintf("build matrix: %v", err), 1)
					}
					seedTestMatrix([]*matrix.Matrix[float64]{m}, int(n), seed)

					start := time.Now()
					rep, err := driver.GetrfNoPiv[float64](ctx, m, options.Map{
						options.Target:    tgt,
						options.Lookahead: lh,
					})
					if err != nil {
						return cli.Exit(fmt.Sprintf("lookahead=%d target=%s: %v", lh, tgt, err), 1)
					}
					elapsed := time.Since(start)
					fmt.Printf("%-10d %-10s %12s %14d %14d\n", lh, tgt.String(), elapsed, rep.BytesSent, rep.BytesRecv)
				}
			}
			return nil
		},
	}
}

func splitInts(s string) ([]int, error) {
	var out []int
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		v, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid lookahead value %q: %w", tok, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func splitTargets(s string) ([]kernel.Target, error) {
	var out []kernel.Target
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		t, err := parseTarget(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
