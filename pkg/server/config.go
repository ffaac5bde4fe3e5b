package server

import (
	"time"

	"github.com/marmos91/distd/pkg/bufpool"
	"github.com/marmos91/distd/pkg/protocol"
)

// Default values applied to zero fields of Config.
const (
	DefaultPort                 = 8888
	DefaultChunkSize            = bufpool.DefaultChunkSize
	DefaultActivityRefreshBytes = 1 << 20
	DefaultReadTimeout          = 60 * time.Second
	DefaultWriteTimeout         = 60 * time.Second
	DefaultAcceptTimeout        = time.Second
	DefaultIdleTimeout          = 5 * time.Minute
	DefaultIdleSweepInterval    = 10 * time.Second
	DefaultShutdownTimeout      = 10 * time.Second
)

// Greeting is the text sent after the 220 code on connect.
const Greeting = "FTP Server Ready"

// TimeoutsConfig bounds every blocking operation of the server.
type TimeoutsConfig struct {
	// Read bounds a single socket read while a transfer is streaming.
	Read time.Duration

	// Write bounds a single socket write.
	Write time.Duration

	// Accept bounds each wait for a new connection.
	Accept time.Duration

	// Idle is the session timeout enforced by the idle monitor.
	Idle time.Duration

	// IdleSweep is the interval between idle monitor sweeps.
	IdleSweep time.Duration

	// Shutdown is how long Stop waits for handlers to exit.
	Shutdown time.Duration
}

// Config configures a Server.
type Config struct {
	// BindAddress is the IP address to bind to. Empty binds to all interfaces.
	BindAddress string

	// Port is the TCP port to listen on. 0 picks an ephemeral port.
	Port int

	// MaxConnections limits concurrent connections. 0 means unlimited.
	MaxConnections int

	// ChunkSize is the payload chunk size for GET and PUT.
	ChunkSize int

	// ActivityRefreshBytes is how often, in bytes streamed, a GET refreshes
	// the connection's activity timestamp.
	ActivityRefreshBytes int64

	// MaxLineLength bounds a command line.
	MaxLineLength int

	// MaxFileSize bounds an upload. 0 means unlimited.
	MaxFileSize int64

	// MetricsLogInterval logs connection counts periodically. 0 disables it.
	MetricsLogInterval time.Duration

	Timeouts TimeoutsConfig
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	cfg := Config{Port: DefaultPort}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ActivityRefreshBytes <= 0 {
		c.ActivityRefreshBytes = DefaultActivityRefreshBytes
	}
	if c.MaxLineLength <= 0 {
		c.MaxLineLength = protocol.DefaultMaxLineLength
	}
	if c.Timeouts.Read <= 0 {
		c.Timeouts.Read = DefaultReadTimeout
	}
	if c.Timeouts.Write <= 0 {
		c.Timeouts.Write = DefaultWriteTimeout
	}
	if c.Timeouts.Accept <= 0 {
		c.Timeouts.Accept = DefaultAcceptTimeout
	}
	if c.Timeouts.Idle <= 0 {
		c.Timeouts.Idle = DefaultIdleTimeout
	}
	if c.Timeouts.IdleSweep <= 0 {
		c.Timeouts.IdleSweep = DefaultIdleSweepInterval
	}
	if c.Timeouts.Shutdown <= 0 {
		c.Timeouts.Shutdown = DefaultShutdownTimeout
	}
}

// commandReadTimeout bounds the wait for the next command. The idle monitor
// normally closes the connection first; the deadline only guarantees the
// read cannot block forever if the monitor is not running.
func (c *Config) commandReadTimeout() time.Duration {
	return 2 * (c.Timeouts.Idle + c.Timeouts.IdleSweep)
}
