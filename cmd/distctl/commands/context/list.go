package context

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/distd/cmd/distctl/cmdutil"
	"github.com/marmos91/distd/internal/cli/timeutil"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved servers",
	Long: `List all saved servers. The current context is marked with an
asterisk (*).

Examples:
  # List contexts as table
  distctl context list

  # List as JSON
  distctl context list -o json`,
	RunE: runContextList,
}

// ContextInfo represents context information for output.
type ContextInfo struct {
	Name     string `json:"name" yaml:"name"`
	Current  bool   `json:"current" yaml:"current"`
	Addr     string `json:"addr" yaml:"addr"`
	APIURL   string `json:"api_url,omitempty" yaml:"api_url,omitempty"`
	LastUsed string `json:"last_used,omitempty" yaml:"last_used,omitempty"`
}

// ContextList is a list of contexts for table rendering.
type ContextList []ContextInfo

// Headers implements TableRenderer.
func (cl ContextList) Headers() []string {
	return []string{"", "NAME", "ADDRESS", "API", "LAST USED"}
}

// Rows implements TableRenderer.
func (cl ContextList) Rows() [][]string {
	rows := make([][]string, 0, len(cl))
	for _, c := range cl {
		current := ""
		if c.Current {
			current = "*"
		}
		rows = append(rows, []string{current, c.Name, c.Addr, cmdutil.EmptyOr(c.APIURL, "-"), cmdutil.EmptyOr(c.LastUsed, "-")})
	}
	return rows
}

func runContextList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	currentContext := store.GetCurrentContextName()
	names := store.ListContexts()

	list := make(ContextList, 0, len(names))
	for _, name := range names {
		ctx, err := store.GetContext(name)
		if err != nil {
			continue
		}

		info := ContextInfo{
			Name:    name,
			Current: name == currentContext,
			Addr:    ctx.Addr,
			APIURL:  ctx.APIURL,
		}
		if !ctx.LastUsed.IsZero() {
			info.LastUsed = timeutil.FormatAge(ctx.LastUsed)
		}
		list = append(list, info)
	}

	return cmdutil.PrintOutput(cmd.OutOrStdout(), list, len(list) == 0,
		"No contexts configured. Use 'distctl context add <name> <host:port>' to create one.", list)
}
