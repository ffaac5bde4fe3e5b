package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/distd/pkg/client"
)

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "Show server statistics",
	Long: `Show the statistics report of the server: uptime, connections,
transfers and, for the current session, idle time and command count.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printText(cmd, (*client.Client).Stat)
	},
}

var systCmd = &cobra.Command{
	Use:   "syst",
	Short: "Show the server system type",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printText(cmd, (*client.Client).Syst)
	},
}

func printText(cmd *cobra.Command, fn func(*client.Client, context.Context) (string, error)) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		text, err := fn(c, ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	})
}
