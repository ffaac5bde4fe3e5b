package api

import "time"

// DefaultPort is the default HTTP port of the observability endpoint.
const DefaultPort = 9090

// Config configures the observability HTTP server.
//
// The server exposes Prometheus metrics, health probes and a JSON view of
// the transfer server's statistics. It is off unless Enabled is set.
type Config struct {
	// Enabled controls whether the HTTP server is started.
	Enabled bool

	// BindAddress is the IP address to bind to. Empty binds to all interfaces.
	BindAddress string

	// Port is the HTTP port. 0 picks an ephemeral port.
	Port int

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Default: 10s
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 60s
	IdleTimeout time.Duration
}

// applyDefaults fills in zero timeouts.
func (c *Config) applyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}
