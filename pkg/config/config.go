package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/marmos91/distd/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "DISTD"

// Config represents the distd configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DISTD_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server configures the file transfer listener
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Metrics contains the observability HTTP server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ServerConfig configures the transfer server.
type ServerConfig struct {
	// BindAddress is the IP address to bind to
	// Default: "0.0.0.0"
	BindAddress string `mapstructure:"bind_address" validate:"omitempty,ip|hostname" yaml:"bind_address"`

	// Port is the TCP port to listen on
	// Default: 8888
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`

	// Root is the directory whose regular files are served
	// Default: "." (current working directory)
	Root string `mapstructure:"root" validate:"required" yaml:"root"`

	// MaxConnections limits concurrent clients (0 = unlimited)
	MaxConnections int `mapstructure:"max_connections" validate:"min=0" yaml:"max_connections"`

	// ChunkSize is the payload chunk used by GET and PUT
	// Supports human-readable formats: "8KiB", "64Ki", "1MiB"
	// Default: 8KiB
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" validate:"min=512,max=16777216" yaml:"chunk_size"`

	// MaxLineLength bounds a single command line in bytes
	// Default: 4096
	MaxLineLength int `mapstructure:"max_line_length" validate:"min=64" yaml:"max_line_length"`

	// MaxFileSize rejects uploads larger than this (0 = unlimited)
	MaxFileSize bytesize.ByteSize `mapstructure:"max_file_size" yaml:"max_file_size"`

	// Timeouts bound blocking operations
	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts"`
}

// TimeoutsConfig groups the server's timeouts.
type TimeoutsConfig struct {
	// Read bounds a single socket read during a transfer
	// Default: 60s
	Read time.Duration `mapstructure:"read" validate:"gt=0" yaml:"read"`

	// Write bounds a single socket write
	// Default: 60s
	Write time.Duration `mapstructure:"write" validate:"gt=0" yaml:"write"`

	// Accept bounds each wait for a new connection
	// Default: 1s
	Accept time.Duration `mapstructure:"accept" validate:"gt=0" yaml:"accept"`

	// Idle is the session timeout after which idle clients are evicted
	// Default: 5m
	Idle time.Duration `mapstructure:"idle" validate:"gt=0" yaml:"idle"`

	// IdleSweep is the interval between idle checks
	// Default: 10s
	IdleSweep time.Duration `mapstructure:"idle_sweep" validate:"gt=0" yaml:"idle_sweep"`

	// Shutdown is the maximum time to wait for graceful shutdown
	// Default: 10s
	Shutdown time.Duration `mapstructure:"shutdown" validate:"gt=0" yaml:"shutdown"`
}

// MetricsConfig configures the Prometheus/health HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// BindAddress is the IP address the HTTP server binds to
	BindAddress string `mapstructure:"bind_address" validate:"omitempty,ip|hostname" yaml:"bind_address,omitempty"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1" yaml:"sample_rate"`
}

// configKeys lists every leaf key so environment variables are honored even
// when the config file does not mention them.
var configKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"server.bind_address",
	"server.port",
	"server.root",
	"server.max_connections",
	"server.chunk_size",
	"server.max_line_length",
	"server.max_file_size",
	"server.timeouts.read",
	"server.timeouts.write",
	"server.timeouts.accept",
	"server.timeouts.idle",
	"server.timeouts.idle_sweep",
	"server.timeouts.shutdown",
	"metrics.enabled",
	"metrics.bind_address",
	"metrics.port",
	"telemetry.enabled",
	"telemetry.endpoint",
	"telemetry.insecure",
	"telemetry.sample_rate",
}

// Load loads configuration from file, environment, and defaults.
//
// A missing config file is not an error: environment variables and defaults
// still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	return decode(v)
}

// decode unmarshals the current viper state, applies defaults and validates.
func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// An explicitly named file must exist; the default location may be absent,
// in which case defaults and environment overrides are used.
func MustLoad(configPath string) (*Config, error) {
	if err := requireFile(configPath); err != nil {
		return nil, err
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// MustWatch is Watch with the same missing-file handling as MustLoad.
func MustWatch(configPath string, onChange func(*Config), onError func(error)) (*Config, error) {
	if err := requireFile(configPath); err != nil {
		return nil, err
	}

	cfg, err := Watch(configPath, onChange, onError)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

func requireFile(configPath string) error {
	if configPath == "" {
		return nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  distd config init --config %s",
			configPath, configPath)
	}
	return nil
}

// Watch loads the configuration and re-decodes it every time the file
// changes. onChange receives each successfully reloaded configuration;
// invalid edits are reported through onError and otherwise ignored.
//
// Watch is a no-op beyond the initial load when no config file exists.
func Watch(configPath string, onChange func(*Config), onError func(error)) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if !found {
		return cfg, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		if onChange != nil {
			onChange(next)
		}
	})
	v.WatchConfig()

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DISTD_SERVER_TIMEOUTS_IDLE=30s
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		_ = v.BindEnv(key)
	}
	v.SetDefault("telemetry.insecure", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize, so
// config files can say "8KiB", "1MiB", or plain byte counts.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			if v < 0 {
				return nil, fmt.Errorf("negative byte size: %d", v)
			}
			return bytesize.ByteSize(v), nil
		case int64:
			if v < 0 {
				return nil, fmt.Errorf("negative byte size: %d", v)
			}
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			if v < 0 {
				return nil, fmt.Errorf("negative byte size: %v", v)
			}
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s", "5m" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "distd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "distd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
