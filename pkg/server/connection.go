package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/distd/internal/logger"
	"github.com/marmos91/distd/pkg/protocol"
)

// State is the position of a connection in its command loop.
type State int32

const (
	StateAwaitingCommand State = iota
	StateDispatching
	StateTransferring
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingCommand:
		return "awaiting_command"
	case StateDispatching:
		return "dispatching"
	case StateTransferring:
		return "transferring"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// goodbyeWriteTimeout bounds the best-effort goodbye written before a
// connection is closed from outside its handler.
const goodbyeWriteTimeout = time.Second

// HistoryEntry is one command line received on a connection.
type HistoryEntry struct {
	At   time.Time
	Line string
}

// Connection is one client session. It is owned by the goroutine running
// Serve; the idle monitor and shutdown only touch the atomic fields, the
// write path (under writeMu) and the close path.
type Connection struct {
	server *Server
	conn   net.Conn
	wire   *wireConn
	reader *protocol.LineReader

	id          string
	addr        string
	connectedAt time.Time
	logCtx      *logger.LogContext

	// writeMu serializes socket writes between the handler, the idle
	// monitor and shutdown.
	writeMu sync.Mutex

	// lifeMu orders "start a transfer" against "evict the connection" so
	// the monitor cannot close a connection that has just begun streaming.
	lifeMu  sync.Mutex
	closing atomic.Bool

	closeOnce sync.Once

	lastActivity  atomic.Int64
	transferring  atomic.Bool
	state         atomic.Int32
	lastCode      atomic.Int32
	bytesSent     atomic.Int64
	bytesReceived atomic.Int64

	historyMu sync.Mutex
	history   []HistoryEntry
}

func newConnection(s *Server, nc net.Conn) *Connection {
	now := time.Now()
	c := &Connection{
		server:      s,
		conn:        nc,
		id:          uuid.NewString(),
		addr:        nc.RemoteAddr().String(),
		connectedAt: now,
	}
	c.wire = &wireConn{Conn: nc, c: c}
	c.reader = protocol.NewLineReader(c.wire, s.config.MaxLineLength)
	c.logCtx = logger.NewLogContext(c.id, c.addr)
	c.lastActivity.Store(now.UnixNano())
	c.state.Store(int32(StateAwaitingCommand))
	return c
}

// wireConn counts every byte crossing the socket and treats inbound bytes
// as client activity.
type wireConn struct {
	net.Conn
	c *Connection
}

func (w *wireConn) Read(p []byte) (int, error) {
	n, err := w.Conn.Read(p)
	if n > 0 {
		w.c.touch()
		w.c.bytesReceived.Add(int64(n))
		w.c.server.stats.AddBytesReceived(int64(n))
	}
	return n, err
}

func (w *wireConn) Write(p []byte) (int, error) {
	n, err := w.Conn.Write(p)
	if n > 0 {
		w.c.bytesSent.Add(int64(n))
		w.c.server.stats.AddBytesSent(int64(n))
	}
	return n, err
}

// Serve runs the command loop until QUIT, disconnect, eviction or shutdown.
func (c *Connection) Serve(ctx context.Context) {
	ctx = logger.WithContext(ctx, c.logCtx)
	defer c.cleanup(ctx)
	defer func() {
		if r := recover(); r != nil {
			c.server.stats.Error()
			logger.ErrorCtx(ctx, "Panic in connection handler",
				"panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := c.writeReply(protocol.NewReply(protocol.Ready, Greeting)); err != nil {
		logger.DebugCtx(ctx, "Failed to send greeting", logger.Err(err))
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}
		c.setState(StateAwaitingCommand)

		_ = c.conn.SetReadDeadline(time.Now().Add(c.server.config.commandReadTimeout()))
		line, err := c.reader.ReadLine()
		if err != nil {
			if errors.Is(err, protocol.ErrLineTooLong) {
				logger.DebugCtx(ctx, "Command line too long")
				if !c.sendReply(protocol.SyntaxError, "Command line too long") {
					return
				}
				continue
			}
			c.logReadError(ctx, err)
			return
		}

		if !c.dispatch(ctx, line) {
			return
		}
	}
}

func (c *Connection) logReadError(ctx context.Context, err error) {
	switch {
	case c.closing.Load():
		logger.DebugCtx(ctx, "Connection closed by server")
	case errors.Is(err, io.EOF):
		logger.DebugCtx(ctx, "Client closed connection")
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			logger.DebugCtx(ctx, "Command read timed out")
			return
		}
		logger.DebugCtx(ctx, "Error reading command", logger.Err(err))
	}
}

func (c *Connection) cleanup(ctx context.Context) {
	c.close()
	c.server.registry.Remove(c)

	logger.InfoCtx(ctx, "Client disconnected",
		"commands", c.CommandCount(),
		"bytes_sent", c.bytesSent.Load(),
		"bytes_received", c.bytesReceived.Load(),
		"connected_for", time.Since(c.connectedAt).Round(time.Millisecond).String(),
	)
}

// close shuts the socket without writing anything.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.setState(StateClosed)
		_ = c.conn.Close()
	})
}

// closeWithReply writes r best-effort and closes the socket. It is used by
// the idle monitor and shutdown, which run outside the handler goroutine.
func (c *Connection) closeWithReply(r protocol.Reply) {
	c.closeOnce.Do(func() {
		c.closing.Store(true)

		// Skip the goodbye rather than wait behind a write stuck on a slow
		// peer; closing the socket unblocks that writer anyway.
		if c.writeMu.TryLock() {
			_ = c.conn.SetWriteDeadline(time.Now().Add(goodbyeWriteTimeout))
			_, _ = r.WriteTo(c.wire)
			c.writeMu.Unlock()
		}

		c.setState(StateClosed)
		_ = c.conn.Close()
	})
}

// evictIfIdle closes the connection with a timeout goodbye when it has been
// idle longer than timeout and is not streaming a file.
func (c *Connection) evictIfIdle(now time.Time, timeout time.Duration) bool {
	c.lifeMu.Lock()
	if c.closing.Load() || c.transferring.Load() || c.IdleFor(now) <= timeout {
		c.lifeMu.Unlock()
		return false
	}
	c.closing.Store(true)
	c.lifeMu.Unlock()

	c.closeWithReply(protocol.NewReply(protocol.Goodbye, "Connection timed out due to inactivity"))
	return true
}

// beginTransfer marks the connection as streaming, exempting it from idle
// eviction. It fails if the connection is already being closed.
func (c *Connection) beginTransfer() bool {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.closing.Load() {
		return false
	}
	c.transferring.Store(true)
	c.setState(StateTransferring)
	c.touch()
	return true
}

func (c *Connection) endTransfer() {
	c.touch()
	c.transferring.Store(false)
}

func (c *Connection) writeRaw(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.config.Timeouts.Write)); err != nil {
		return err
	}
	_, err := c.wire.Write(b)
	return err
}

func (c *Connection) writeReply(r protocol.Reply) error {
	c.lastCode.Store(int32(r.Kind.Code()))
	return c.writeRaw(r.Bytes())
}

// sendReply writes a single-line reply and reports whether the connection
// is still usable.
func (c *Connection) sendReply(kind protocol.Kind, extra string) bool {
	return c.writeReply(protocol.NewReply(kind, extra)) == nil
}

func (c *Connection) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *Connection) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Connection) record(line string) {
	c.historyMu.Lock()
	c.history = append(c.history, HistoryEntry{At: time.Now(), Line: line})
	c.historyMu.Unlock()
}

// ID returns the connection's unique id.
func (c *Connection) ID() string { return c.id }

// Addr returns the peer address.
func (c *Connection) Addr() string { return c.addr }

// ConnectedAt returns when the connection was accepted.
func (c *Connection) ConnectedAt() time.Time { return c.connectedAt }

// State returns the current loop state.
func (c *Connection) State() State { return State(c.state.Load()) }

// TransferInProgress reports whether a GET or PUT is streaming.
func (c *Connection) TransferInProgress() bool { return c.transferring.Load() }

// LastActivity returns the time of the last byte received or transfer
// progress mark.
func (c *Connection) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// IdleFor returns how long the connection has been idle as of now.
func (c *Connection) IdleFor(now time.Time) time.Duration {
	return now.Sub(c.LastActivity())
}

// BytesSent returns the bytes written to the socket.
func (c *Connection) BytesSent() int64 { return c.bytesSent.Load() }

// BytesReceived returns the bytes read from the socket.
func (c *Connection) BytesReceived() int64 { return c.bytesReceived.Load() }

// CommandCount returns the number of commands received.
func (c *Connection) CommandCount() int {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	return len(c.history)
}

// History returns a copy of the command history.
func (c *Connection) History() []HistoryEntry {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	return append([]HistoryEntry(nil), c.history...)
}
