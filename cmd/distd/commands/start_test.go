package commands

import (
	"testing"

	"github.com/marmos91/distd/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyStartOverrides(t *testing.T) {
	cfg := config.GetDefaultConfig()

	require.NoError(t, applyStartOverrides(cfg, []string{"127.0.0.1", "2121"}, "/srv/files", true))
	assert.Equal(t, "127.0.0.1", cfg.Server.BindAddress)
	assert.Equal(t, 2121, cfg.Server.Port)
	assert.Equal(t, "/srv/files", cfg.Server.Root)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestApplyStartOverridesKeepsConfig(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Server.Port = 4000

	require.NoError(t, applyStartOverrides(cfg, nil, "", false))
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, ".", cfg.Server.Root)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestApplyStartOverridesRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"non-numeric port", []string{"0.0.0.0", "ftp"}},
		{"port out of range", []string{"0.0.0.0", "70000"}},
		{"malformed host", []string{"bad host!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := applyStartOverrides(config.GetDefaultConfig(), tt.args, "", false)
			assert.Error(t, err)
		})
	}
}

func TestRootCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range GetRootCmd().Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["start"])
	assert.True(t, names["config"])
	assert.True(t, names["version"])
}
