// Package client is the Go gateway to a distd server.
//
// A Client owns one control connection and runs one command at a time;
// concurrent calls are serialized. Every call takes a context whose
// deadline and cancellation bound the network I/O of that call. After a
// transport failure or a protocol violation the connection is closed,
// because its position in the stream is no longer known.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/distd/pkg/bufpool"
	"github.com/marmos91/distd/pkg/protocol"
	"github.com/spf13/afero"
)

// Defaults applied to zero Options fields.
const (
	DefaultDialTimeout = 10 * time.Second
	DefaultTimeout     = 60 * time.Second
)

// Options configures a Client.
type Options struct {
	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration

	// Timeout bounds each blocking read or write. Transfers renew it per
	// chunk.
	Timeout time.Duration

	// ChunkSize is the payload chunk size for uploads and downloads.
	ChunkSize int

	// MaxLineLength bounds a reply line.
	MaxLineLength int

	// Fs is the local filesystem used by Put and GetFile. Defaults to the
	// OS filesystem.
	Fs afero.Fs
}

func (o *Options) applyDefaults() {
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = bufpool.DefaultChunkSize
	}
	if o.MaxLineLength <= 0 {
		o.MaxLineLength = protocol.DefaultMaxLineLength
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
}

// Client is a session with a distd server.
type Client struct {
	addr     string
	opts     Options
	greeting string

	mu     sync.Mutex
	conn   net.Conn
	reader *protocol.LineReader
	opCtx  context.Context
	broken bool

	stats statsRecorder
}

// aLongTimeAgo is a deadline in the past, used to abort blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// Connect dials addr and reads the server greeting.
func Connect(ctx context.Context, addr string, opts Options) (*Client, error) {
	opts.applyDefaults()

	d := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, wrapNetErr("connect "+addr, err)
	}

	c := &Client{
		addr:   addr,
		opts:   opts,
		conn:   conn,
		reader: protocol.NewLineReader(conn, opts.MaxLineLength),
	}

	err = c.op(ctx, "greeting", func() error {
		r, err := c.readReply()
		if err != nil {
			return err
		}
		if r.Code != protocol.Ready.Code() {
			c.broken = true
			return violation("unexpected greeting %s", r)
		}
		c.greeting = strings.TrimSpace(strings.TrimPrefix(r.Text, protocol.Ready.Phrase()))
		return nil
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Addr returns the server address.
func (c *Client) Addr() string { return c.addr }

// Greeting returns the text the server sent after its ready code.
func (c *Client) Greeting() string { return c.greeting }

// Stats returns a copy of the session counters.
func (c *Client) Stats() Stats { return c.stats.snapshot() }

// Close closes the connection without saying goodbye. It is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// op runs fn with the connection bound to ctx. The caller must not hold mu.
func (c *Client) op(ctx context.Context, name string, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	c.opCtx = ctx
	c.broken = false
	c.renew()
	conn := c.conn
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(aLongTimeAgo) })

	err := fn()

	stop()
	c.opCtx = nil
	if err == nil {
		return nil
	}

	c.stats.update(func(s *Stats) { s.Errors++ })
	if ctxErr := ctx.Err(); ctxErr != nil {
		_ = c.closeLocked()
		return fmt.Errorf("%s: %w", name, ctxErr)
	}
	if c.broken || errors.Is(err, ErrServerClosed) {
		_ = c.closeLocked()
	}
	return err
}

// renew pushes the I/O deadline forward by one Timeout, capped by the
// deadline of the running operation's context.
func (c *Client) renew() {
	deadline := time.Now().Add(c.opts.Timeout)
	if c.opCtx != nil {
		if d, ok := c.opCtx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
	}
	_ = c.conn.SetDeadline(deadline)
}

func (c *Client) write(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if _, err := c.conn.Write(b); err != nil {
		c.broken = true
		return wrapNetErr("write", err)
	}
	return nil
}

func (c *Client) send(line string) error {
	c.stats.update(func(s *Stats) { s.CommandsSent++ })
	return c.write([]byte(line + protocol.CRLF))
}

func (c *Client) readLine() (string, error) {
	line, err := c.reader.ReadLine()
	if err != nil {
		c.broken = true
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read: %w", io.ErrUnexpectedEOF)
		}
		if errors.Is(err, protocol.ErrLineTooLong) {
			return "", violation("reply line too long")
		}
		return "", wrapNetErr("read", err)
	}
	return line, nil
}

func (c *Client) readReply() (protocol.ParsedReply, error) {
	line, err := c.readLine()
	if err != nil {
		return protocol.ParsedReply{}, err
	}
	r, err := protocol.ParseReply(line)
	if err != nil {
		c.broken = true
		return protocol.ParsedReply{}, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	return r, nil
}

// readBody reads continuation lines up to the empty terminator line.
func (c *Client) readBody() ([]string, error) {
	var body []string
	for {
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			return body, nil
		}
		body = append(body, line)
	}
}

func (c *Client) command(line string) (protocol.ParsedReply, error) {
	if err := c.send(line); err != nil {
		return protocol.ParsedReply{}, err
	}
	return c.readReply()
}

// textOf strips the fixed phrase of kind from a reply text.
func textOf(kind protocol.Kind, r protocol.ParsedReply) string {
	return strings.TrimSpace(strings.TrimPrefix(r.Text, kind.Phrase()))
}
