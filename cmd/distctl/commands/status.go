package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/marmos91/distd/cmd/distctl/cmdutil"
	"github.com/marmos91/distd/internal/cli/contexts"
	"github.com/marmos91/distd/internal/cli/output"
	"github.com/marmos91/distd/internal/cli/timeutil"
	"github.com/marmos91/distd/pkg/api"
	"github.com/marmos91/distd/pkg/api/handlers"
	"github.com/marmos91/distd/pkg/apiclient"
)

var statusAPI string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status from the HTTP endpoint",
	Long: `Query the metrics/health HTTP endpoint of a distd server started with
metrics enabled, and show readiness, counters and live sessions.

The endpoint is taken from --api, then the current context's API URL,
then localhost:9090.

Examples:
  # Check status of the server in the current context
  distctl status

  # Check a specific endpoint, as JSON
  distctl status --api http://files.lan:9090 -o json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAPI, "api", "", "Base URL of the HTTP endpoint")
}

// ServerStatus represents the server status for display.
type ServerStatus struct {
	Endpoint      string                    `json:"endpoint" yaml:"endpoint"`
	Status        string                    `json:"status" yaml:"status"`
	Ready         bool                      `json:"ready" yaml:"ready"`
	ActiveClients int                       `json:"active_clients" yaml:"active_clients"`
	Stats         *handlers.StatsPayload    `json:"stats,omitempty" yaml:"stats,omitempty"`
	Connections   []handlers.ConnectionInfo `json:"connections,omitempty" yaml:"connections,omitempty"`
	Error         string                    `json:"error,omitempty" yaml:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	status := collectStatus(cmd.Context(), apiclient.New(statusEndpoint()))

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	return output.Print(w, format, status, func() error {
		return printStatusTable(w, status)
	})
}

func statusEndpoint() string {
	if statusAPI != "" {
		return statusAPI
	}
	if store, err := contexts.NewStore(); err == nil {
		if ctx, err := store.GetCurrentContext(); err == nil && ctx.APIURL != "" {
			return ctx.APIURL
		}
	}
	return fmt.Sprintf("localhost:%d", api.DefaultPort)
}

func collectStatus(ctx context.Context, c *apiclient.Client) ServerStatus {
	status := ServerStatus{Endpoint: c.BaseURL(), Status: "unreachable"}

	ready, err := c.Ready(ctx)
	var apiErr *apiclient.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.IsUnavailable():
		status.Status = "not ready"
		status.Error = apiErr.Message
	case err != nil:
		status.Error = err.Error()
		return status
	default:
		status.Status = "ready"
		status.Ready = true
		status.ActiveClients = ready.ActiveClients
	}

	if s, err := c.Stats(ctx); err == nil {
		status.Stats = s
	}
	if conns, err := c.Connections(ctx); err == nil {
		status.Connections = conns
	}
	return status
}

func printStatusTable(w io.Writer, status ServerStatus) error {
	var state string
	switch {
	case status.Ready:
		state = color.GreenString("● %s", status.Status)
	case status.Status == "unreachable":
		state = color.RedString("○ %s", status.Status)
	default:
		state = color.YellowString("● %s", status.Status)
	}

	pairs := [][2]string{
		{"Endpoint", status.Endpoint},
		{"Status", state},
	}
	if status.Error != "" {
		pairs = append(pairs, [2]string{"Error", status.Error})
	}
	if s := status.Stats; s != nil {
		pairs = append(pairs,
			[2]string{"Started", timeutil.FormatTime(s.StartedAt)},
			[2]string{"Uptime", s.Uptime},
			[2]string{"Active clients", fmt.Sprint(s.ActiveClients)},
			[2]string{"Connections", humanize.Comma(int64(s.Connections))},
			[2]string{"Commands", humanize.Comma(int64(s.CommandsProcessed))},
			[2]string{"Files transferred", humanize.Comma(int64(s.FilesTransferred))},
			[2]string{"Bytes sent", humanize.IBytes(s.BytesSent)},
			[2]string{"Bytes received", humanize.IBytes(s.BytesReceived)},
			[2]string{"Errors", humanize.Comma(int64(s.Errors))},
		)
	}
	if err := output.SimpleTable(w, pairs); err != nil {
		return err
	}

	if len(status.Connections) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(w)
	table := output.NewTableData("ID", "CLIENT", "CONNECTED", "STATE", "IDLE", "COMMANDS", "SENT", "RECEIVED").
		AlignRight(4, 5, 6, 7)
	for _, c := range status.Connections {
		table.AddRow(
			c.ID,
			c.Addr,
			timeutil.FormatAge(c.ConnectedAt),
			c.State,
			fmt.Sprintf("%ds", c.IdleSeconds),
			fmt.Sprint(c.Commands),
			humanize.IBytes(uint64(c.BytesSent)),
			humanize.IBytes(uint64(c.BytesReceived)),
		)
	}
	return output.PrintTable(w, table)
}
