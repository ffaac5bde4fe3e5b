package config

import (
	"github.com/marmos91/distd/internal/logger"
	"github.com/marmos91/distd/internal/telemetry"
	"github.com/marmos91/distd/pkg/api"
	"github.com/marmos91/distd/pkg/server"
)

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}

// ServerConfig returns the transfer server settings. The served root is not
// part of it; callers open the store themselves.
func (c *Config) ServerConfig() server.Config {
	s := c.Server
	cfg := server.Config{
		BindAddress:    s.BindAddress,
		Port:           s.Port,
		MaxConnections: s.MaxConnections,
		ChunkSize:      s.ChunkSize.Int(),
		MaxLineLength:  s.MaxLineLength,
		MaxFileSize:    s.MaxFileSize.Int64(),
		Timeouts: server.TimeoutsConfig{
			Read:      s.Timeouts.Read,
			Write:     s.Timeouts.Write,
			Accept:    s.Timeouts.Accept,
			Idle:      s.Timeouts.Idle,
			IdleSweep: s.Timeouts.IdleSweep,
			Shutdown:  s.Timeouts.Shutdown,
		},
	}
	return cfg
}

// APIConfig returns the observability HTTP server settings.
func (c *Config) APIConfig() api.Config {
	return api.Config{
		Enabled:     c.Metrics.Enabled,
		BindAddress: c.Metrics.BindAddress,
		Port:        c.Metrics.Port,
	}
}

// TelemetryConfig returns the tracing settings for the given build version.
func (c *Config) TelemetryConfig(version string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    "distd",
		ServiceVersion: version,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
		SampleRate:     c.Telemetry.SampleRate,
	}
}
