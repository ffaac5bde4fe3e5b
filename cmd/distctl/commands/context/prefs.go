package context

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/distd/cmd/distctl/cmdutil"
	"github.com/marmos91/distd/internal/cli/output"
)

var (
	prefsOutput string
	prefsColor  string
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change output preferences",
	Long: `Show or change the saved output preferences. They apply when the
matching global flag (-o, --no-color) is not given.

Examples:
  # Default to JSON output and never color
  distctl context prefs --default-output json --color never`,
	Args: cobra.NoArgs,
	RunE: runContextPrefs,
}

func init() {
	prefsCmd.Flags().StringVar(&prefsOutput, "default-output", "", "Default output format (table|json|yaml)")
	prefsCmd.Flags().StringVar(&prefsColor, "color", "", "Color mode (auto|never)")
}

func runContextPrefs(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	prefs := store.GetPreferences()

	changed := false
	if cmd.Flags().Changed("default-output") {
		if _, err := output.ParseFormat(prefsOutput); err != nil {
			return err
		}
		prefs.DefaultOutput = prefsOutput
		changed = true
	}
	if cmd.Flags().Changed("color") {
		if prefsColor != "auto" && prefsColor != "never" {
			return fmt.Errorf("invalid color mode %q: expected auto or never", prefsColor)
		}
		prefs.Color = prefsColor
		changed = true
	}

	if changed {
		if err := store.SetPreferences(prefs); err != nil {
			return fmt.Errorf("failed to save preferences: %w", err)
		}
	}

	return output.SimpleTable(cmd.OutOrStdout(), [][2]string{
		{"Default output", cmdutil.EmptyOr(prefs.DefaultOutput, "table")},
		{"Color", cmdutil.EmptyOr(prefs.Color, "auto")},
	})
}
