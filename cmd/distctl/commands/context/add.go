package context

import (
	"errors"
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/marmos91/distd/cmd/distctl/cmdutil"
	"github.com/marmos91/distd/internal/cli/contexts"
)

var (
	addAPI string
	addUse bool
)

var addCmd = &cobra.Command{
	Use:   "add <name> <host:port>",
	Short: "Save a server",
	Long: `Save a distd server under a name. The first saved server becomes the
current context.

Examples:
  # Save a local server
  distctl context add local localhost:8888

  # Save a server with its status endpoint and switch to it
  distctl context add lab files.lan:8888 --api http://files.lan:9090 --use`,
	Args: cobra.ExactArgs(2),
	RunE: runContextAdd,
}

func init() {
	addCmd.Flags().StringVar(&addAPI, "api", "", "Base URL of the server's HTTP status endpoint")
	addCmd.Flags().BoolVar(&addUse, "use", false, "Switch to the new context")
}

func runContextAdd(cmd *cobra.Command, args []string) error {
	name, addr := args[0], args[1]
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid address %q: expected host:port", addr)
	}

	store, err := openStore()
	if err != nil {
		return err
	}

	if err := store.AddContext(name, &contexts.Context{Addr: addr, APIURL: addAPI}); err != nil {
		if errors.Is(err, contexts.ErrContextExists) {
			return fmt.Errorf("context '%s' already exists", name)
		}
		return fmt.Errorf("failed to save context: %w", err)
	}
	if addUse {
		if err := store.UseContext(name); err != nil {
			return err
		}
	}

	cmdutil.Printer(cmd.OutOrStdout()).Success(fmt.Sprintf("Context '%s' saved (%s)", name, addr))
	return nil
}
