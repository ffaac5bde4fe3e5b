package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/distd/cmd/distctl/cmdutil"
	"github.com/marmos91/distd/internal/cli/prompt"
	"github.com/marmos91/distd/internal/cli/timeutil"
	"github.com/marmos91/distd/pkg/client"
)

var (
	getForce bool
	putForce bool
	rmForce  bool
)

var lsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List files on the server",
	Long: `List the files in the served directory.

Examples:
  # List as a table
  distctl ls

  # List as JSON
  distctl ls -o json`,
	Args: cobra.NoArgs,
	RunE: runLs,
}

var getCmd = &cobra.Command{
	Use:   "get <remote> [local]",
	Short: "Download a file",
	Long: `Download a file from the server. The local path defaults to the
remote name in the current directory. Data is written to "<local>.part"
and renamed into place only when the transfer completes.

Examples:
  # Download report.pdf into the current directory
  distctl get report.pdf

  # Download and overwrite without asking
  distctl get report.pdf /tmp/report.pdf --force`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGet,
}

var putCmd = &cobra.Command{
	Use:   "put <local> [remote]",
	Short: "Upload a file",
	Long: `Upload a local file. The remote name defaults to the local base name.
The server refuses to overwrite an existing file; --force deletes it first.

Examples:
  # Upload notes.txt
  distctl put notes.txt

  # Upload under another name, replacing it if present
  distctl put build/out.bin release.bin --force`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPut,
}

var rmCmd = &cobra.Command{
	Use:     "rm <remote>",
	Aliases: []string{"del"},
	Short:   "Delete a file on the server",
	Args:    cobra.ExactArgs(1),
	RunE:    runRm,
}

func init() {
	getCmd.Flags().BoolVarP(&getForce, "force", "f", false, "Overwrite the local file without asking")
	putCmd.Flags().BoolVarP(&putForce, "force", "f", false, "Replace the remote file if it exists")
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "Skip confirmation prompt")
}

// FileInfo is one listed remote file.
type FileInfo struct {
	Name     string    `json:"name" yaml:"name"`
	Type     string    `json:"type" yaml:"type"`
	Size     int64     `json:"size" yaml:"size"`
	Modified time.Time `json:"modified" yaml:"modified"`
}

// FileList is a list of files for table rendering.
type FileList []FileInfo

// Headers implements TableRenderer.
func (fl FileList) Headers() []string {
	return []string{"NAME", "TYPE", "SIZE", "MODIFIED"}
}

// Rows implements TableRenderer.
func (fl FileList) Rows() [][]string {
	rows := make([][]string, 0, len(fl))
	for _, f := range fl {
		size := humanize.IBytes(uint64(f.Size))
		if f.Type == "DIR" {
			size = "-"
		}
		rows = append(rows, []string{f.Name, f.Type, size, timeutil.FormatTime(f.Modified)})
	}
	return rows
}

// RightAligned implements output.RightAligner.
func (fl FileList) RightAligned() []int {
	return []int{2}
}

func newFileList(entries []client.Entry) FileList {
	files := make(FileList, 0, len(entries))
	for _, e := range entries {
		kind := "FILE"
		if e.IsDir {
			kind = "DIR"
		}
		files = append(files, FileInfo{Name: e.Name, Type: kind, Size: e.Size, Modified: e.ModTime})
	}
	return files
}

func runLs(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		entries, err := c.ListEntries(ctx)
		if err != nil {
			return err
		}
		files := newFileList(entries)
		return cmdutil.PrintOutput(cmd.OutOrStdout(), files, len(files) == 0, "No files on the server.", files)
	})
}

// TransferResult describes a finished upload or download.
type TransferResult struct {
	Remote  string  `json:"remote" yaml:"remote"`
	Local   string  `json:"local" yaml:"local"`
	Bytes   int64   `json:"bytes" yaml:"bytes"`
	Seconds float64 `json:"seconds" yaml:"seconds"`
}

func (r TransferResult) summary(verb string) string {
	elapsed := time.Duration(r.Seconds * float64(time.Second))
	return fmt.Sprintf("%s %s (%s bytes) in %s at %s",
		verb, r.Remote, humanize.Comma(r.Bytes), timeutil.FormatElapsed(elapsed), timeutil.FormatRate(r.Bytes, elapsed))
}

func runGet(cmd *cobra.Command, args []string) error {
	remote := args[0]
	local := filepath.Base(remote)
	if len(args) > 1 {
		local = args[1]
	}

	if _, err := os.Stat(local); err == nil {
		ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Overwrite local file '%s'?", local), getForce)
		if err != nil {
			return cmdutil.HandleAbort(cmd.OutOrStdout(), err)
		}
		if !ok {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		start := time.Now()
		n, err := c.GetFile(ctx, remote, local)
		if err != nil {
			return err
		}
		res := TransferResult{Remote: remote, Local: local, Bytes: n, Seconds: time.Since(start).Seconds()}
		return cmdutil.PrintResult(cmd.OutOrStdout(), res, res.summary("Downloaded"))
	})
}

func runPut(cmd *cobra.Command, args []string) error {
	local := args[0]
	remote := filepath.Base(local)
	if len(args) > 1 {
		remote = args[1]
	}

	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		start := time.Now()
		n, err := c.Put(ctx, local, remote)
		if errors.Is(err, client.ErrConflict) && putForce {
			if _, err := c.Delete(ctx, remote); err != nil {
				return err
			}
			start = time.Now()
			n, err = c.Put(ctx, local, remote)
		}
		if errors.Is(err, client.ErrConflict) {
			return fmt.Errorf("%w\n\nUse --force to replace it", err)
		}
		if err != nil {
			return err
		}
		res := TransferResult{Remote: remote, Local: local, Bytes: n, Seconds: time.Since(start).Seconds()}
		return cmdutil.PrintResult(cmd.OutOrStdout(), res, res.summary("Uploaded"))
	})
}

func runRm(cmd *cobra.Command, args []string) error {
	name := args[0]
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		return cmdutil.RunDeleteWithConfirmation(cmd.OutOrStdout(), "file", name, rmForce, func() (string, error) {
			return c.Delete(ctx, name)
		})
	})
}
