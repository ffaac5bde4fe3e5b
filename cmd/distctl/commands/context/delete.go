package context

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/distd/cmd/distctl/cmdutil"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a context",
	Long: `Delete a saved server.

Examples:
  # Delete context named "lab"
  distctl context delete lab

  # Delete without confirmation
  distctl context delete lab --force`,
	Args: cobra.ExactArgs(1),
	RunE: runContextDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation")
}

func runContextDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	store, err := openStore()
	if err != nil {
		return err
	}

	if _, err := store.GetContext(name); err != nil {
		return notFound(name, err)
	}

	return cmdutil.RunDeleteWithConfirmation(cmd.OutOrStdout(), "context", name, deleteForce, func() (string, error) {
		return "", store.DeleteContext(name)
	})
}
