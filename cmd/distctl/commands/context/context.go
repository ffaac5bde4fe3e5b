// Package context implements context management subcommands for distctl.
package context

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/distd/internal/cli/contexts"
)

// Cmd is the context subcommand.
var Cmd = &cobra.Command{
	Use:   "context",
	Short: "Manage saved servers",
	Long: `Manage saved distd servers.

A context names a server address and, optionally, the URL of its HTTP
status endpoint. Commands without an explicit address use the current
context.

Subcommands:
  add      Save a server
  list     List all saved servers
  use      Switch to a different context
  current  Show current context
  rename   Rename a context
  delete   Delete a context
  prefs    Show or change output preferences`,
}

func init() {
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(useCmd)
	Cmd.AddCommand(currentCmd)
	Cmd.AddCommand(renameCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(prefsCmd)
}

func openStore() (*contexts.Store, error) {
	store, err := contexts.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open context store: %w", err)
	}
	return store, nil
}

func notFound(name string, err error) error {
	if errors.Is(err, contexts.ErrContextNotFound) {
		return fmt.Errorf("context '%s' not found\n\n"+
			"List available contexts:\n"+
			"  distctl context list", name)
	}
	return err
}
