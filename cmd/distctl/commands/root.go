// Package commands implements the CLI commands for the distctl client.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/marmos91/distd/cmd/distctl/cmdutil"
	ctxcmd "github.com/marmos91/distd/cmd/distctl/commands/context"
	"github.com/marmos91/distd/internal/cli/contexts"
	"github.com/marmos91/distd/internal/cli/shell"
	"github.com/marmos91/distd/pkg/client"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "distctl [host] [port]",
	Short: "distctl - client for the distd file server",
	Long: `distctl talks to a distd server. Run without a subcommand it opens an
interactive session with tab completion; the subcommands run a single
operation and exit.

The server is picked from the positional [host] [port], then --server,
then the current context (see "distctl context"), then localhost:8888.

Use "distctl [command] --help" for more information about a command.`,
	Args:          cobra.MaximumNArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.Flags.Server, _ = cmd.Flags().GetString("server")
		cmdutil.Flags.Timeout, _ = cmd.Flags().GetDuration("timeout")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")

		var prefs contexts.Preferences
		if store, err := contexts.NewStore(); err == nil {
			prefs = store.GetPreferences()
		}
		cmdutil.ApplyPreferences(prefs, cmd.Flags().Changed("output"), cmd.Flags().Changed("no-color"))
	},
	RunE: runShell,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("server", "", "Server address host:port (overrides the current context)")
	rootCmd.PersistentFlags().Duration("timeout", client.DefaultTimeout, "Timeout for connecting and for each network read or write")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(systCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ctxcmd.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func runShell(cmd *cobra.Command, args []string) error {
	// The interactive prompt handles Ctrl+C itself.
	ctx := context.WithoutCancel(cmd.Context())

	c, err := cmdutil.Connect(ctx, args)
	if err != nil {
		return err
	}

	dir, err := os.Getwd()
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("get working directory: %w", err)
	}

	sh := shell.New(ctx, c, shell.Options{
		Out:   cmd.OutOrStdout(),
		Color: cmdutil.ColorEnabled(),
		Fs:    afero.NewOsFs(),
		Dir:   dir,
	})
	sh.Run()
	return nil
}

// withClient connects, runs fn and closes the session with QUIT.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	ctx := cmd.Context()
	c, err := cmdutil.Connect(ctx, nil)
	if err != nil {
		return err
	}

	err = fn(ctx, c)

	quitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_ = c.Quit(quitCtx)
	return err
}
