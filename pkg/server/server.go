package server

import (
	"context"
	"net"

	"github.com/marmos91/distd/internal/logger"
	"github.com/marmos91/distd/pkg/adapter"
	"github.com/marmos91/distd/pkg/metrics"
	"github.com/marmos91/distd/pkg/protocol"
	"github.com/marmos91/distd/pkg/stats"
	"github.com/marmos91/distd/pkg/store"
)

// Protocol is the adapter name used in logs.
const Protocol = "distd"

// Server accepts connections and runs one Connection per client.
//
// Architecture:
//   - adapter.BaseAdapter owns the listener, the bounded accept loop and
//     graceful shutdown
//   - each accepted socket gets a Connection running on its own goroutine
//   - a single idle monitor goroutine evicts sessions past the idle timeout
//
// Shared state is limited to the Registry and the stats Aggregator, both
// safe for concurrent use.
type Server struct {
	*adapter.BaseAdapter

	config   Config
	store    *store.Store
	stats    *stats.Aggregator
	registry *Registry
	metrics  metrics.ServerMetrics
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithMetrics enables metrics collection. A nil m is ignored.
func WithMetrics(m metrics.ServerMetrics) Option {
	return func(s *Server) {
		if m == nil {
			return
		}
		s.metrics = m
		s.BaseAdapter.Metrics = m
	}
}

// New creates a Server serving files from st. Zero fields of cfg take their
// defaults. A nil agg gets a fresh Aggregator.
func New(cfg Config, st *store.Store, agg *stats.Aggregator, opts ...Option) *Server {
	cfg.applyDefaults()
	if agg == nil {
		agg = stats.New()
	}

	base := adapter.NewBaseAdapter(adapter.BaseConfig{
		BindAddress:        cfg.BindAddress,
		Port:               cfg.Port,
		MaxConnections:     cfg.MaxConnections,
		AcceptTimeout:      cfg.Timeouts.Accept,
		ShutdownTimeout:    cfg.Timeouts.Shutdown,
		MetricsLogInterval: cfg.MetricsLogInterval,
	}, Protocol)

	s := &Server{
		BaseAdapter: base,
		config:      cfg,
		store:       st,
		stats:       agg,
		registry:    NewRegistry(),
	}
	base.OnShutdown = s.sayGoodbye

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve binds the listener if needed and runs the accept loop until ctx is
// cancelled or Stop is called.
func (s *Server) Serve(ctx context.Context) error {
	select {
	case <-s.ListenerReady:
	default:
		if err := s.Listen(ctx); err != nil {
			return err
		}
	}

	logger.Info("Serving files", "root", s.store.Root(),
		"idle_timeout", s.config.Timeouts.Idle, "max_connections", s.config.MaxConnections)

	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()
	go s.runIdleMonitor(monitorCtx)

	err := s.ServeWithFactory(ctx, s, nil, nil)
	s.logFinalStats()
	return err
}

// NewConnection implements adapter.ConnectionFactory.
func (s *Server) NewConnection(nc net.Conn) adapter.ConnectionHandler {
	c := newConnection(s, nc)
	s.registry.Add(c)
	s.stats.ConnectionAccepted()

	logger.Info("Client connected",
		logger.ConnID(c.id), logger.ClientAddr(c.addr),
		logger.KeyActive, s.registry.Len())
	return c
}

// sayGoodbye notifies every registered client that the server is going
// away and closes its socket.
func (s *Server) sayGoodbye() {
	conns := s.registry.Snapshot()
	if len(conns) > 0 {
		logger.Info("Disconnecting clients", logger.KeyActive, len(conns))
	}
	for _, c := range conns {
		c.closeWithReply(protocol.NewReply(protocol.Goodbye, "Server shutting down"))
	}
}

func (s *Server) logFinalStats() {
	snap := s.stats.Snapshot()
	logger.Info("Final server statistics",
		"uptime", stats.FormatUptime(snap.Uptime),
		"connections", snap.Connections,
		"commands", snap.CommandsProcessed,
		"files_transferred", snap.FilesTransferred,
		"bytes_sent", snap.BytesSent,
		"bytes_received", snap.BytesReceived,
		"errors", snap.Errors,
	)
}

// Stats returns the server-wide statistics aggregator.
func (s *Server) Stats() *stats.Aggregator { return s.stats }

// Registry returns the live connection registry.
func (s *Server) Registry() *Registry { return s.registry }

// ActiveClients returns the number of registered connections.
func (s *Server) ActiveClients() int { return s.registry.Len() }

// Store returns the file store being served.
func (s *Server) Store() *store.Store { return s.store }

// Addr returns the listening address. It blocks until the listener is
// bound.
func (s *Server) Addr() string { return s.GetListenerAddr() }

var (
	_ adapter.Adapter           = (*Server)(nil)
	_ adapter.ConnectionFactory = (*Server)(nil)
)
