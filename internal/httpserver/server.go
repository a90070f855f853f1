package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/phuslu/log"
)

// State is the server lifecycle state.
type State int32

const (
	StateRunning State = iota
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// shutdownGrace bounds how long draining may take before connections are
// forcibly closed.
const shutdownGrace = 10 * time.Second

// Server runs the streamable HTTP transport. Shutdown is graceful and
// bounded: the server stops accepting sessions, closes the live ones, and
// waits at most shutdownGrace for in-flight requests before forcing the
// listener closed.
type Server struct {
	httpSrv  *http.Server
	registry *Registry
	logger   *log.Logger
	state    atomic.Int32
}

// New creates the transport server for the given MCP server.
func New(addr, service string, mcpServer *mcpserver.MCPServer, logger *log.Logger) *Server {
	registry := NewRegistry(mcpServer, logger)
	handler := NewHandler(mcpServer, registry, service, logger)

	s := &Server{
		registry: registry,
		logger:   logger,
	}
	s.httpSrv = &http.Server{
		Addr:        addr,
		Handler:     handler.Routes(),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: SSE streams stay open for the session's lifetime.
		IdleTimeout: 120 * time.Second,
	}
	s.state.Store(int32(StateRunning))
	return s
}

// Start blocks serving HTTP until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpSrv.Addr).Msg("HTTP transport listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains and stops the server. Safe to call once; later calls are
// no-ops. If the context carries no deadline, the default grace period
// applies.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		return nil
	}
	s.logger.Info().Msg("shutting down HTTP transport")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownGrace)
		defer cancel()
	}

	s.registry.CloseAll(ctx)

	err := s.httpSrv.Shutdown(ctx)
	if err != nil {
		// The grace period ran out; force the remaining connections closed.
		s.logger.Warn().Err(err).Msg("graceful shutdown incomplete, forcing close")
		err = s.httpSrv.Close()
	}
	s.state.Store(int32(StateStopped))
	s.logger.Info().Msg("HTTP transport stopped")
	return err
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Registry exposes the session registry, mainly for tests.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}
