package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/distd/internal/logger"
)

// ConnectionHandler represents a protocol-specific connection that can serve
// requests. The Serve method blocks until the connection is closed or the
// context is cancelled.
type ConnectionHandler interface {
	Serve(ctx context.Context)
}

// ConnectionFactory creates protocol-specific connection handlers for
// accepted TCP connections.
type ConnectionFactory interface {
	NewConnection(conn net.Conn) ConnectionHandler
}

// DefaultAcceptTimeout bounds a single Accept call so the loop can observe
// shutdown without relying on the listener being closed.
const DefaultAcceptTimeout = time.Second

// DefaultBacklog is the listen backlog requested for the server socket.
//
// The Go runtime always passes the kernel's somaxconn to listen(2) and
// offers no way to override it, so Listen does not apply this value. It
// only records the requested backlog.
const DefaultBacklog = 5

// BaseConfig holds configuration common to all protocol adapters.
type BaseConfig struct {
	// BindAddress is the IP address to bind to.
	// Empty string or "0.0.0.0" binds to all interfaces.
	BindAddress string

	// Port is the TCP port to listen on. 0 picks an ephemeral port.
	Port int

	// MaxConnections limits the number of concurrent client connections.
	// 0 means unlimited.
	MaxConnections int

	// AcceptTimeout bounds each wait for a new connection.
	AcceptTimeout time.Duration

	// ShutdownTimeout is the maximum duration to wait for active connections
	// to complete during graceful shutdown.
	ShutdownTimeout time.Duration

	// MetricsLogInterval is the interval at which to log server metrics.
	// 0 disables periodic metrics logging.
	MetricsLogInterval time.Duration
}

// MetricsRecorder allows protocol adapters to record connection lifecycle
// metrics.
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
}

// OnConnectionClose is an optional callback invoked when a connection's serve
// goroutine completes, before the WaitGroup and semaphore are released.
type OnConnectionClose func(addr string)

// BaseAdapter provides shared TCP lifecycle management for protocol adapters.
//
// It owns the listening socket, the accept loop, connection accounting and
// graceful shutdown. Protocol-specific behavior is injected via
// ConnectionFactory and the optional hooks.
//
// Thread safety:
// All exported methods are safe for concurrent use. The shutdown mechanism uses
// sync.Once to ensure idempotent behavior even if Stop() is called multiple times.
type BaseAdapter struct {
	// Config holds the shared configuration (bind address, port, limits, timeouts)
	Config BaseConfig

	// protocolName is the human-readable protocol name for logging
	protocolName string

	// Metrics is an optional recorder for connection lifecycle metrics.
	Metrics MetricsRecorder

	// OnShutdown runs once when shutdown begins, after the running flag is
	// cleared and before connections are interrupted and the listener is
	// closed. Adapters use it to say goodbye to their clients.
	OnShutdown func()

	listener   net.Listener
	listenerMu sync.RWMutex

	// activeConns tracks all currently active connections for graceful shutdown.
	activeConns sync.WaitGroup

	shutdownOnce sync.Once

	// running is polled by the accept loop between bounded waits.
	running atomic.Bool

	// Shutdown is closed when graceful shutdown has been initiated.
	Shutdown chan struct{}

	// ConnCount tracks the current number of active connections.
	ConnCount atomic.Int32

	// connSemaphore limits concurrent connections; nil if unlimited.
	connSemaphore chan struct{}

	// ShutdownCtx is cancelled during shutdown and passed to every handler.
	ShutdownCtx context.Context

	// CancelRequests cancels ShutdownCtx during shutdown.
	CancelRequests context.CancelFunc

	// ActiveConnections maps remote address to net.Conn for forced closure.
	ActiveConnections sync.Map

	// ListenerReady is closed when the listener is ready to accept connections.
	ListenerReady chan struct{}
}

// NewBaseAdapter creates a new BaseAdapter with the specified configuration.
// The adapter is created in a stopped state. Call ServeWithFactory() to start.
func NewBaseAdapter(config BaseConfig, protocol string) *BaseAdapter {
	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug(protocol+" connection limit", "max_connections", config.MaxConnections)
	} else {
		logger.Debug(protocol+" connection limit", "max_connections", "unlimited")
	}
	if config.AcceptTimeout <= 0 {
		config.AcceptTimeout = DefaultAcceptTimeout
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &BaseAdapter{
		Config:         config,
		protocolName:   protocol,
		Shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		ShutdownCtx:    shutdownCtx,
		CancelRequests: cancelRequests,
		ListenerReady:  make(chan struct{}),
	}
}

// Listen binds the server socket with address reuse enabled.
func (b *BaseAdapter) Listen(ctx context.Context) error {
	lc := net.ListenConfig{Control: reuseAddrControl}
	addr := net.JoinHostPort(b.Config.BindAddress, strconv.Itoa(b.Config.Port))

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create %s listener on %s: %w", b.protocolName, addr, err)
	}

	b.listenerMu.Lock()
	b.listener = listener
	b.listenerMu.Unlock()
	b.running.Store(true)
	close(b.ListenerReady)

	logger.Info(b.protocolName+" server listening", logger.KeyAddress, listener.Addr().String())
	return nil
}

// ServeWithFactory runs the shared TCP accept loop, delegating to factory for
// protocol-specific connection creation. Listen is called first if it has
// not been already.
//
// Parameters:
//   - ctx: Controls the server lifecycle. Cancellation triggers graceful shutdown.
//   - factory: Creates protocol-specific connection handlers.
//   - preAccept: Optional hook called after accept but before tracking.
//     Return false to reject the connection.
//   - onClose: Optional callback invoked when a connection's goroutine exits.
//
// Returns:
//   - nil on graceful shutdown
//   - error if listener fails to start or shutdown is not graceful
func (b *BaseAdapter) ServeWithFactory(
	ctx context.Context,
	factory ConnectionFactory,
	preAccept func(net.Conn) bool,
	onClose OnConnectionClose,
) error {
	select {
	case <-b.ListenerReady:
	default:
		if err := b.Listen(ctx); err != nil {
			return err
		}
	}

	// Monitor context cancellation in separate goroutine
	go func() {
		select {
		case <-ctx.Done():
			logger.Info(b.protocolName+" shutdown signal received", "error", ctx.Err())
			b.initiateShutdown()
		case <-b.Shutdown:
		}
	}()

	if b.Config.MetricsLogInterval > 0 {
		go b.logMetrics(ctx)
	}

	b.listenerMu.RLock()
	listener := b.listener
	b.listenerMu.RUnlock()

	for b.running.Load() {
		if b.connSemaphore != nil {
			select {
			case b.connSemaphore <- struct{}{}:
			case <-b.Shutdown:
				return b.gracefulShutdown()
			}
		}

		b.setAcceptDeadline(listener)
		tcpConn, err := listener.Accept()
		if err != nil {
			if b.connSemaphore != nil {
				<-b.connSemaphore
			}
			if !b.running.Load() || errors.Is(err, net.ErrClosed) {
				return b.gracefulShutdown()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				// Bounded wait elapsed; re-check the running flag.
				continue
			}
			logger.Debug("Error accepting "+b.protocolName+" connection", "error", err)
			continue
		}

		if !b.running.Load() {
			_ = tcpConn.Close()
			if b.connSemaphore != nil {
				<-b.connSemaphore
			}
			break
		}

		if tcp, ok := tcpConn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				logger.Debug("Failed to set TCP_NODELAY", "error", err)
			}
		}

		if preAccept != nil && !preAccept(tcpConn) {
			_ = tcpConn.Close()
			if b.connSemaphore != nil {
				<-b.connSemaphore
			}
			continue
		}

		b.activeConns.Add(1)
		b.ConnCount.Add(1)

		connAddr := tcpConn.RemoteAddr().String()
		b.ActiveConnections.Store(connAddr, tcpConn)

		currentConns := b.ConnCount.Load()
		if b.Metrics != nil {
			b.Metrics.RecordConnectionAccepted()
			b.Metrics.SetActiveConnections(currentConns)
		}

		logger.Debug(b.protocolName+" connection accepted", logger.KeyClientAddr, connAddr, logger.KeyActive, currentConns)

		conn := factory.NewConnection(tcpConn)

		go func(addr string) {
			defer func() {
				if onClose != nil {
					onClose(addr)
				}

				b.ActiveConnections.Delete(addr)

				b.activeConns.Done()
				b.ConnCount.Add(-1)
				if b.connSemaphore != nil {
					<-b.connSemaphore
				}

				if b.Metrics != nil {
					b.Metrics.RecordConnectionClosed()
					b.Metrics.SetActiveConnections(b.ConnCount.Load())
				}

				logger.Debug(b.protocolName+" connection closed", logger.KeyClientAddr, addr, logger.KeyActive, b.ConnCount.Load())
			}()

			conn.Serve(b.ShutdownCtx)
		}(connAddr)
	}

	return b.gracefulShutdown()
}

func (b *BaseAdapter) setAcceptDeadline(l net.Listener) {
	type deadliner interface {
		SetDeadline(time.Time) error
	}
	if d, ok := l.(deadliner); ok {
		if err := d.SetDeadline(time.Now().Add(b.Config.AcceptTimeout)); err != nil {
			logger.Debug("Failed to set accept deadline", "error", err)
		}
	}
}

// initiateShutdown signals the server to begin graceful shutdown.
//
// Shutdown sequence:
//  1. Clear the running flag and close the shutdown channel
//  2. Run the OnShutdown hook (goodbye messages, socket closes)
//  3. Interrupt blocking reads on all remaining connections
//  4. Close the listener
//  5. Cancel ShutdownCtx
//
// Safe to call multiple times and from multiple goroutines.
func (b *BaseAdapter) initiateShutdown() {
	b.shutdownOnce.Do(func() {
		logger.Debug(b.protocolName + " shutdown initiated")

		b.running.Store(false)
		close(b.Shutdown)

		if b.OnShutdown != nil {
			b.OnShutdown()
		}

		b.interruptBlockingReads()

		b.listenerMu.Lock()
		if b.listener != nil {
			if err := b.listener.Close(); err != nil {
				logger.Debug("Error closing "+b.protocolName+" listener", "error", err)
			}
		}
		b.listenerMu.Unlock()

		b.CancelRequests()
	})
}

// interruptBlockingReads sets a short deadline on all active connections
// to interrupt any blocking read operations during shutdown.
func (b *BaseAdapter) interruptBlockingReads() {
	deadline := time.Now().Add(100 * time.Millisecond)

	b.ActiveConnections.Range(func(key, value any) bool {
		if conn, ok := value.(net.Conn); ok {
			if err := conn.SetReadDeadline(deadline); err != nil {
				logger.Debug("Error setting shutdown deadline on connection",
					logger.KeyClientAddr, key, "error", err)
			}
		}
		return true
	})
}

// gracefulShutdown waits for active connections to complete or timeout.
func (b *BaseAdapter) gracefulShutdown() error {
	activeCount := b.ConnCount.Load()
	logger.Info(b.protocolName+" graceful shutdown: waiting for active connections",
		logger.KeyActive, activeCount, "timeout", b.Config.ShutdownTimeout)

	if err := b.waitForConnections(b.Config.ShutdownTimeout); err != nil {
		remaining := b.ConnCount.Load()
		logger.Warn(b.protocolName+" shutdown timeout exceeded - forcing closure",
			logger.KeyActive, remaining, "timeout", b.Config.ShutdownTimeout)
		b.forceCloseConnections()
		return fmt.Errorf("%s shutdown timeout: %d connections force-closed", b.protocolName, remaining)
	}

	logger.Info(b.protocolName + " graceful shutdown complete: all connections closed")
	return nil
}

func (b *BaseAdapter) waitForConnections(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		b.activeConns.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return nil
	}

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}

// forceCloseConnections closes all active TCP connections to accelerate shutdown.
func (b *BaseAdapter) forceCloseConnections() {
	closedCount := 0
	b.ActiveConnections.Range(func(key, value any) bool {
		conn := value.(net.Conn)
		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection", logger.KeyClientAddr, key, "error", err)
		} else {
			closedCount++
			if b.Metrics != nil {
				b.Metrics.RecordConnectionForceClosed()
			}
		}
		return true
	})

	if closedCount > 0 {
		logger.Info("Force-closed connections", "count", closedCount)
	}
}

// Stop initiates graceful shutdown of the server and waits for active
// connections, bounded by ctx. A nil ctx uses the configured
// ShutdownTimeout.
func (b *BaseAdapter) Stop(ctx context.Context) error {
	b.initiateShutdown()

	if ctx == nil {
		return b.gracefulShutdown()
	}

	done := make(chan struct{})
	go func() {
		b.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		remaining := b.ConnCount.Load()
		logger.Warn(b.protocolName+" shutdown context cancelled",
			logger.KeyActive, remaining, "error", ctx.Err())
		b.forceCloseConnections()
		return ctx.Err()
	}
}

// IsRunning reports whether the accept loop is live.
func (b *BaseAdapter) IsRunning() bool {
	return b.running.Load()
}

func (b *BaseAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(b.Config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.Shutdown:
			return
		case <-ticker.C:
			logger.Info(b.protocolName+" metrics", "active_connections", b.ConnCount.Load())
		}
	}
}

// GetActiveConnections returns the current number of active connections.
func (b *BaseAdapter) GetActiveConnections() int32 {
	return b.ConnCount.Load()
}

// GetListenerAddr returns the address the server is listening on.
// This method blocks until the listener is ready, making it safe for tests.
func (b *BaseAdapter) GetListenerAddr() string {
	<-b.ListenerReady

	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()

	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Port returns the configured TCP port.
func (b *BaseAdapter) Port() int {
	return b.Config.Port
}

// Protocol returns the human-readable protocol name.
func (b *BaseAdapter) Protocol() string {
	return b.protocolName
}
