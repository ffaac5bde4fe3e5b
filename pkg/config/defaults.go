package config

import (
	"strings"
	"time"

	"github.com/marmos91/distd/internal/bytesize"
	"github.com/marmos91/distd/pkg/api"
	"github.com/marmos91/distd/pkg/protocol"
	"github.com/marmos91/distd/pkg/server"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false) are replaced with defaults; explicit values are
// preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyMetricsDefaults(&cfg.Metrics)
	applyTelemetryDefaults(&cfg.Telemetry)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.BindAddress == "" {
		cfg.BindAddress = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = server.DefaultPort
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = bytesize.ByteSize(server.DefaultChunkSize)
	}
	if cfg.MaxLineLength == 0 {
		cfg.MaxLineLength = protocol.DefaultMaxLineLength
	}
	applyTimeoutDefaults(&cfg.Timeouts)
}

func applyTimeoutDefaults(cfg *TimeoutsConfig) {
	defaults := []struct {
		field *time.Duration
		value time.Duration
	}{
		{&cfg.Read, server.DefaultReadTimeout},
		{&cfg.Write, server.DefaultWriteTimeout},
		{&cfg.Accept, server.DefaultAcceptTimeout},
		{&cfg.Idle, server.DefaultIdleTimeout},
		{&cfg.IdleSweep, server.DefaultIdleSweepInterval},
		{&cfg.Shutdown, server.DefaultShutdownTimeout},
	}
	for _, d := range defaults {
		if *d.field == 0 {
			*d.field = d.value
		}
	}
}

// applyMetricsDefaults sets metrics defaults.
// Enabled defaults to false (opt-in).
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = api.DefaultPort
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Telemetry: TelemetryConfig{Insecure: true},
	}
	ApplyDefaults(cfg)
	return cfg
}
