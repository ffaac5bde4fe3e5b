package config

import (
	"fmt"

	"github.com/marmos91/distd/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample distd configuration file holding every default.

By default, the file is created at $XDG_CONFIG_HOME/distd/config.yaml.
Use --config to pick another path.

Examples:
  distd config init
  distd config init --config /etc/distd/config.yaml
  distd config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	var err error
	if path != "" {
		err = config.InitConfigToPath(path, initForce)
	} else {
		path, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", path)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Edit the configuration file to customize your setup")
	fmt.Fprintf(out, "  2. Start the server with: distd start --config %s\n", path)
	return nil
}
