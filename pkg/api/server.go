package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/distd/internal/logger"
	"github.com/marmos91/distd/pkg/api/handlers"
)

// Server is the observability HTTP server.
//
// Endpoints:
//   - GET /metrics: Prometheus metrics
//   - GET /healthz, /healthz/ready: probes
//   - GET /stats, /connections: transfer server state as JSON
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once

	ready    chan struct{}
	listener net.Listener
}

// NewServer creates a stopped server. Call Start to begin serving.
func NewServer(config Config, src handlers.StatsSource) *Server {
	config.applyDefaults()

	server := &http.Server{
		Addr:         net.JoinHostPort(config.BindAddress, strconv.Itoa(config.Port)),
		Handler:      NewRouter(src),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server: server,
		config: config,
		ready:  make(chan struct{}),
	}
}

// Start serves requests until ctx is cancelled or the server fails.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the listener cannot be created or serving fails
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to create HTTP listener on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	close(s.ready)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", logger.KeyAddress, ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("HTTP server shutdown signal received")
		// The cancelled ctx would abort the shutdown immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("HTTP server failed: %w", err)
	}
}

// Stop shuts the server down gracefully. It is safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
			logger.Error("HTTP server shutdown error", logger.Err(err))
			return
		}
		logger.Info("HTTP server stopped gracefully")
	})
	return shutdownErr
}

// Addr returns the listening address. It blocks until Start has bound the
// listener.
func (s *Server) Addr() string {
	<-s.ready
	return s.listener.Addr().String()
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.config.Port
}
