package context

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/distd/cmd/distctl/cmdutil"
	"github.com/marmos91/distd/internal/cli/output"
	"github.com/marmos91/distd/internal/cli/timeutil"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show current context",
	RunE:  runContextCurrent,
}

func runContextCurrent(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	name := store.GetCurrentContextName()
	if name == "" {
		return fmt.Errorf("no current context set\n\n" +
			"Save a server first:\n" +
			"  distctl context add local localhost:8888")
	}

	ctx, err := store.GetContext(name)
	if err != nil {
		return notFound(name, err)
	}

	info := ContextInfo{Name: name, Current: true, Addr: ctx.Addr, APIURL: ctx.APIURL}
	if !ctx.LastUsed.IsZero() {
		info.LastUsed = timeutil.FormatTime(ctx.LastUsed)
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	return output.Print(w, format, info, func() error {
		_, _ = fmt.Fprintf(w, "Current context: %s\n", name)
		return output.SimpleTable(w, [][2]string{
			{"  Address", info.Addr},
			{"  API", cmdutil.EmptyOr(info.APIURL, "-")},
			{"  Last used", cmdutil.EmptyOr(info.LastUsed, "never")},
		})
	})
}
