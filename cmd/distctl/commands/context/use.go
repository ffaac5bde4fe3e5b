package context

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/distd/cmd/distctl/cmdutil"
)

var useCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch to a different context",
	Long: `Switch to a different saved server.

Examples:
  # Switch to context named "lab"
  distctl context use lab`,
	Args: cobra.ExactArgs(1),
	RunE: runContextUse,
}

func runContextUse(cmd *cobra.Command, args []string) error {
	name := args[0]

	store, err := openStore()
	if err != nil {
		return err
	}

	if err := store.UseContext(name); err != nil {
		return notFound(name, err)
	}

	cmdutil.Printer(cmd.OutOrStdout()).Success(fmt.Sprintf("Switched to context: %s", name))
	return nil
}
