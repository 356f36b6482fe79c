package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	tesseraapi "github.com/dlattice/tessera/internal/api"
	"github.com/dlattice/tessera/internal/comm"
	"github.com/dlattice/tessera/internal/diag"
	"github.com/dlattice/tessera/internal/driver"
	"github.com/dlattice/tessera/internal/logger"
	"github.com/dlattice/tessera/internal/matrix"
	"github.com/dlattice/tessera/internal/options"
	"github.com/dlattice/tessera/internal/tile"
)

// serveCmd runs the observability HTTP surface: it factors one
// generated test matrix in the background on startup
// and keeps serving the tile-ownership/diagnostics snapshot from that
// run.
func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	flags := append(commonMatrixFlags(), loggingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "127.0.0.1:8080",
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read header timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the observability HTTP surface",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyServeConfig(cmd, LoadConfig(), &addr)
			log := buildLogger()
			ctx = logger.WithContext(ctx, log)

			if _, err := parseTarget(target); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if nb == 0 {
				nb = mb
			}

			server := tesseraapi.NewServer()
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			go runBackgroundFactorization(ctx, server)

			log.Info("starting observability server", "address", addr)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

// runBackgroundFactorization factors one generated test matrix and
// attaches its Provider snapshot to server, so /v1/status and
// /v1/diagnostics have something to report without requiring a
// separate `run` invocation.
func runBackgroundFactorization(ctx context.Context, server *tesseraapi.Server) {
	log := logger.FromContext(ctx)

	resolvedTarget, err := parseTarget(target)
	if err != nil {
		log.Error("serve: parse target", "error", err)
		return
	}

	mt := int((n + mb - 1) / mb)
	ntTiles := int((n + nb - 1) / nb)

	grid := comm.NewGrid(int(p*q), 0)
	arena := tile.NewArena[float64](tile.HostDevice, 0)
	m, err := matrix.NewMatrix[float64](mt, ntTiles, int(mb), int(nb), int(p), int(q), grid.Comm(0), arena)
	if err != nil {
		log.Error("serve: build matrix", "error", err)
		return
	}
	seedTestMatrix([]*matrix.Matrix[float64]{m}, int(n), seed)

	rep, err := driver.GetrfNoPiv[float64](ctx, m, options.Map{
		options.Target:    resolvedTarget,
		options.Lookahead: int(lookahead),
	})
	if err != nil {
		log.Error("serve: factorization failed", "error", err)
		return
	}

	snapRec := diag.NewRecorder()
	for _, ev := range rep.Singular {
		snapRec.RecordSingular(ev.K, ev.Tile[0], ev.Tile[1], ev.Column)
	}
	snapRec.AddBytesSent(rep.BytesSent)
	snapRec.AddBytesRecv(rep.BytesRecv)

	server.SetProvider(tesseraapi.SnapshotMatrix[float64](m, nil, snapRec))
	log.Info("background factorization complete, status endpoints now live")
}
