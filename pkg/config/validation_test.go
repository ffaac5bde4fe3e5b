package config

import (
	"testing"
	"time"

	"github.com/marmos91/distd/internal/bytesize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:   "ephemeral port",
			mutate: func(c *Config) { c.Server.Port = 0 },
		},
		{
			name:    "bad level",
			mutate:  func(c *Config) { c.Logging.Level = "TRACE" },
			wantErr: "logging.level: must be one of",
		},
		{
			name:    "bad bind address",
			mutate:  func(c *Config) { c.Server.BindAddress = "not a host!" },
			wantErr: "server.bind_address",
		},
		{
			name:    "empty root",
			mutate:  func(c *Config) { c.Server.Root = "" },
			wantErr: "server.root: is required",
		},
		{
			name:    "tiny chunk",
			mutate:  func(c *Config) { c.Server.ChunkSize = 16 },
			wantErr: "server.chunk_size: must be at least 512",
		},
		{
			name:    "zero read timeout",
			mutate:  func(c *Config) { c.Server.Timeouts.Read = 0 },
			wantErr: "server.timeouts.read",
		},
		{
			name: "sweep not shorter than idle",
			mutate: func(c *Config) {
				c.Server.Timeouts.Idle = 10 * time.Second
				c.Server.Timeouts.IdleSweep = 10 * time.Second
			},
			wantErr: "idle_sweep",
		},
		{
			name: "max file size below chunk",
			mutate: func(c *Config) {
				c.Server.MaxFileSize = 100
			},
			wantErr: "server.max_file_size",
		},
		{
			name: "metrics port clash",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Port = c.Server.Port
			},
			wantErr: "must differ",
		},
		{
			name:   "metrics port clash while disabled",
			mutate: func(c *Config) { c.Metrics.Port = c.Server.Port },
		},
		{
			name:    "sample rate above one",
			mutate:  func(c *Config) { c.Telemetry.SampleRate = 1.5 },
			wantErr: "telemetry.sample_rate: must be at most 1",
		},
		{
			name: "telemetry without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Endpoint = ""
			},
			wantErr: "telemetry.endpoint: is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"
	cfg.Server.ChunkSize = bytesize.ByteSize(1)

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
	assert.Contains(t, err.Error(), "server.chunk_size")
}
