package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const sampleHeader = `# distd Configuration File
#
# Every key can be overridden by an environment variable named
# DISTD_<SECTION>_<KEY>, for example:
#   DISTD_LOGGING_LEVEL=DEBUG
#   DISTD_SERVER_PORT=2121
#   DISTD_SERVER_TIMEOUTS_IDLE=30s
#
# Sizes accept human-readable units (8KiB, 1MiB, 100MB).
# Durations use Go syntax (500ms, 30s, 5m).

`

// InitConfig writes a sample configuration file to the default location
// and returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	data, err := sampleConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// sampleConfig renders the default configuration with a comment header.
func sampleConfig() ([]byte, error) {
	body, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(sampleHeader)
	buf.Write(body)
	return buf.Bytes(), nil
}
