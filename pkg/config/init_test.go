package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestInitConfig(t *testing.T) {
	dir := isolate(t)

	path, err := InitConfig(false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "distd", "config.yaml"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(content)
	assert.Contains(t, text, "# distd Configuration File")
	for _, section := range []string{"logging:", "server:", "timeouts:", "metrics:", "telemetry:"} {
		assert.Contains(t, text, section)
	}

	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(content, &parsed))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestInitConfigRefusesOverwrite(t *testing.T) {
	isolate(t)

	_, err := InitConfig(false)
	require.NoError(t, err)

	_, err = InitConfig(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = InitConfig(true)
	assert.NoError(t, err)
}

func TestInitConfigToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "distd.yaml")

	require.NoError(t, InitConfigToPath(path, false))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}
