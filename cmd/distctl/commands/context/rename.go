package context

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/distd/cmd/distctl/cmdutil"
	"github.com/marmos91/distd/internal/cli/contexts"
)

var renameCmd = &cobra.Command{
	Use:   "rename <old-name> <new-name>",
	Short: "Rename a context",
	Args:  cobra.ExactArgs(2),
	RunE:  runContextRename,
}

func runContextRename(cmd *cobra.Command, args []string) error {
	oldName, newName := args[0], args[1]

	store, err := openStore()
	if err != nil {
		return err
	}

	if err := store.RenameContext(oldName, newName); err != nil {
		if errors.Is(err, contexts.ErrContextExists) {
			return fmt.Errorf("context '%s' already exists", newName)
		}
		return notFound(oldName, err)
	}

	cmdutil.Printer(cmd.OutOrStdout()).Success(fmt.Sprintf("Context '%s' renamed to '%s'", oldName, newName))
	return nil
}
