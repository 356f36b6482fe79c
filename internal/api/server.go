// Package api is tessera's observability HTTP surface: a small echo/v5
// status/diagnostics server exposing the process's tile-ownership map,
// in-flight task count, and diagnostics channel as JSON, plus a
// liveness endpoint. This package is pure observability —
// driver.GetrfNoPiv never depends on it.
package api

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v5"
)

// Server wires a Provider (possibly swapped out over the server's
// lifetime, as successive driver.GetrfNoPiv runs complete) to a small
// set of read-only routes.
type Server struct {
	mu       sync.RWMutex
	provider Provider
}

// NewServer returns a Server with no Provider attached; SetProvider
// must be called before any status/diagnostics route returns data.
func NewServer() *Server {
	return &Server{}
}

// SetProvider swaps the Provider a running server reports from. The
// CLI's serve command calls it once, after its background
// driver.GetrfNoPiv call finishes; until then the status and
// diagnostics routes have no provider to report from.
func (s *Server) SetProvider(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = p
}

func (s *Server) currentProvider() (Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provider == nil {
		return nil, newNotReady("no factorization has been attached to this server yet")
	}
	return s.provider, nil
}

// Register installs this server's routes onto e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealthz)
	e.GET("/v1/status", s.handleStatus)
	e.GET("/v1/diagnostics", s.handleDiagnostics)
}

func (s *Server) handleHealthz(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleStatus(c *echo.Context) error {
	p, err := s.currentProvider()
	if err != nil {
		return writeNotFound(c, err.Error())
	}
	mt, nt, tiles := p.Tiles()
	return c.JSON(http.StatusOK, StatusResponse{
		Rank:     p.Rank(),
		Mt:       mt,
		Nt:       nt,
		Tiles:    tiles,
		InFlight: p.InFlight(),
	})
}

func (s *Server) handleDiagnostics(c *echo.Context) error {
	p, err := s.currentProvider()
	if err != nil {
		return writeNotFound(c, err.Error())
	}
	rec := p.Recorder()
	if rec == nil {
		return writeNotFound(c, "no diagnostics recorder attached")
	}
	return c.JSON(http.StatusOK, DiagnosticsResponse{Snapshot: rec.Snapshot()})
}
