package config

import (
	"fmt"

	"github.com/marmos91/distd/internal/cli/output"
	"github.com/marmos91/distd/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the distd configuration file.

Checks for syntax errors, malformed sizes and durations, and values out of
range. Environment overrides (DISTD_*) are applied before validation.

Examples:
  distd config validate
  distd config validate --config /etc/distd/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}

	if path == "" {
		path = config.GetDefaultConfigPath()
		if !config.DefaultConfigExists() {
			path += " (not found, defaults in use)"
		}
	}

	var warnings []string
	if cfg.Server.MaxFileSize == 0 {
		warnings = append(warnings, "server.max_file_size is unlimited")
	}
	if cfg.Server.MaxConnections == 0 {
		warnings = append(warnings, "server.max_connections is unlimited")
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Insecure {
		warnings = append(warnings, "telemetry exports without TLS")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file: %s\n", path)
	fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	fmt.Fprintln(out, "\nConfiguration summary:")
	return output.SimpleTable(out, [][2]string{
		{"Listen", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)},
		{"Root", cfg.Server.Root},
		{"Chunk size", cfg.Server.ChunkSize.String()},
		{"Idle timeout", cfg.Server.Timeouts.Idle.String()},
		{"Metrics", enabledString(cfg.Metrics.Enabled, fmt.Sprintf("port %d", cfg.Metrics.Port))},
		{"Log level", cfg.Logging.Level},
	})
}

func enabledString(on bool, detail string) string {
	if !on {
		return "disabled"
	}
	return "enabled, " + detail
}
