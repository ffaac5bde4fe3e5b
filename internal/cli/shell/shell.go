// Package shell implements the interactive distctl session: a prompt that
// sends commands to a distd server and runs a few local file commands.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/marmos91/distd/internal/cli/output"
	"github.com/marmos91/distd/internal/cli/timeutil"
	"github.com/marmos91/distd/pkg/client"
)

// Remote is the part of a distd session the shell drives.
// *client.Client satisfies it.
type Remote interface {
	Addr() string
	Greeting() string
	Stats() client.Stats
	List(ctx context.Context) (string, error)
	ListEntries(ctx context.Context) ([]client.Entry, error)
	Put(ctx context.Context, localPath, remoteName string) (int64, error)
	GetFile(ctx context.Context, remoteName, localPath string) (int64, error)
	Delete(ctx context.Context, name string) (string, error)
	Stat(ctx context.Context) (string, error)
	Syst(ctx context.Context) (string, error)
	Quit(ctx context.Context) error
	Close() error
}

// Options configures a Shell.
type Options struct {
	// Out receives everything the shell prints.
	Out io.Writer

	// Color enables colored status lines.
	Color bool

	// Fs is the local filesystem for the LOCAL_* commands. It must be the
	// same filesystem the Remote reads uploads from and writes downloads to.
	Fs afero.Fs

	// Dir is the initial local working directory.
	Dir string
}

// Shell is an interactive session bound to one Remote.
type Shell struct {
	ctx     context.Context
	remote  Remote
	out     io.Writer
	printer *output.Printer
	fs      afero.Fs
	dir     string

	completer *Completer
	exit      bool
}

// New creates a shell over remote. ctx bounds every remote command.
func New(ctx context.Context, remote Remote, opts Options) *Shell {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	s := &Shell{
		ctx:     ctx,
		remote:  remote,
		out:     opts.Out,
		printer: output.NewPrinter(opts.Out, output.FormatTable, opts.Color),
		fs:      opts.Fs,
		dir:     filepath.Clean(opts.Dir),
	}
	s.completer = newCompleter(s)
	return s
}

// Dir returns the local working directory.
func (s *Shell) Dir() string {
	return s.dir
}

// Completer returns the shell's tab completer.
func (s *Shell) Completer() *Completer {
	return s.completer
}

// Run prints the greeting and reads commands until QUIT, EXIT, Ctrl+D or
// a lost connection. It prints the session statistics on the way out.
func (s *Shell) Run() {
	s.printer.Success("Connected to " + s.remote.Addr())
	if g := s.remote.Greeting(); g != "" {
		s.printer.Println(g)
	}
	s.printHelp()

	if entries, err := s.remote.ListEntries(s.ctx); err == nil {
		s.completer.setRemote(entries)
	}

	p := prompt.New(
		func(line string) {
			if s.Execute(line) {
				s.exit = true
			}
		},
		s.completer.Complete,
		prompt.OptionTitle("distctl"),
		prompt.OptionLivePrefix(s.livePrefix),
		prompt.OptionPrefixTextColor(prompt.Green),
		prompt.OptionSuggestionBGColor(prompt.DarkGray),
		prompt.OptionDescriptionBGColor(prompt.Black),
		prompt.OptionSetExitCheckerOnInput(func(_ string, breakline bool) bool {
			return s.exit && breakline
		}),
	)
	p.Run()

	s.Finish()
}

// Finish sends QUIT if the session is still open, closes it and prints the
// statistics.
func (s *Shell) Finish() {
	if !s.exit {
		_ = s.remote.Quit(s.ctx)
	}
	_ = s.remote.Close()

	s.printer.Println()
	for _, line := range s.remote.Stats().Lines() {
		s.printer.Println(line)
	}
	s.printer.Success("Disconnected from server")
}

func (s *Shell) livePrefix() (string, bool) {
	return fmt.Sprintf("distctl %s> ", s.remote.Addr()), true
}

// Execute runs one command line and reports whether the session is over.
func (s *Shell) Execute(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	verb := strings.ToUpper(fields[0])
	args := fields[1:]

	switch verb {
	case "HELP":
		s.printHelp()
		return false
	case "LOCAL_LS":
		s.localList()
		return false
	case "LOCAL_CD":
		if len(args) == 0 {
			s.usage("LOCAL_CD <dir>")
			return false
		}
		s.localChdir(args[0])
		return false
	case "LOCAL_PWD":
		s.printer.Println("Local working directory: " + s.dir)
		return false
	case "QUIT", "EXIT":
		if err := s.remote.Quit(s.ctx); err != nil && !errors.Is(err, client.ErrServerClosed) {
			s.printer.Warning(err.Error())
		}
		s.exit = true
		return true
	}

	var err error
	switch verb {
	case "LIST":
		err = s.list()
	case "GET":
		if len(args) == 0 {
			s.usage("GET <filename>")
			return false
		}
		err = s.get(args[0])
	case "PUT":
		if len(args) == 0 {
			s.usage("PUT <filename> [remote name]")
			return false
		}
		remote := ""
		if len(args) > 1 {
			remote = args[1]
		}
		err = s.put(args[0], remote)
	case "DEL":
		if len(args) == 0 {
			s.usage("DEL <filename>")
			return false
		}
		err = s.del(args[0])
	case "STAT":
		err = s.text(s.remote.Stat)
	case "SYST":
		err = s.text(s.remote.Syst)
	default:
		s.printer.Warning(fmt.Sprintf("Unknown command %q. Type HELP for a list of commands.", fields[0]))
		return false
	}
	return s.report(err)
}

// report prints a command error and reports whether the session ended.
func (s *Shell) report(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, client.ErrServerClosed), errors.Is(err, client.ErrClosed):
		s.printer.Warning("Server disconnected: " + err.Error())
		s.exit = true
		return true
	case errors.Is(err, client.ErrTimeout):
		s.printer.Warning("Operation timed out. Try again.")
	default:
		s.printer.Error(err.Error())
	}
	return false
}

func (s *Shell) usage(u string) {
	s.printer.Warning("Usage: " + u)
}

func (s *Shell) list() error {
	text, err := s.remote.List(s.ctx)
	if err != nil {
		return err
	}
	s.printer.Println(text)

	var entries []client.Entry
	for _, row := range strings.Split(text, "\n") {
		if e, err := client.ParseListRow(row); err == nil {
			entries = append(entries, e)
		}
	}
	s.completer.setRemote(entries)
	return nil
}

func (s *Shell) get(name string) error {
	local := s.resolve(filepath.Base(name))
	start := time.Now()
	n, err := s.remote.GetFile(s.ctx, name, local)
	if err != nil {
		return err
	}
	s.printTransfer("Downloaded", name, local, n, time.Since(start))
	return nil
}

func (s *Shell) put(path, remote string) error {
	local := s.resolve(path)
	if remote == "" {
		remote = filepath.Base(path)
	}
	start := time.Now()
	n, err := s.remote.Put(s.ctx, local, remote)
	if err != nil {
		return err
	}
	s.printTransfer("Uploaded", local, remote, n, time.Since(start))
	s.completer.addRemote(remote)
	return nil
}

func (s *Shell) del(name string) error {
	ack, err := s.remote.Delete(s.ctx, name)
	if err != nil {
		return err
	}
	s.printer.Success(ack)
	s.completer.removeRemote(name)
	return nil
}

func (s *Shell) text(fn func(context.Context) (string, error)) error {
	text, err := fn(s.ctx)
	if err != nil {
		return err
	}
	s.printer.Println(text)
	return nil
}

func (s *Shell) printTransfer(verb, from, to string, n int64, elapsed time.Duration) {
	s.printer.Success(fmt.Sprintf("%s %s -> %s: %s bytes in %s (%s)",
		verb, from, to, humanize.Comma(n), timeutil.FormatElapsed(elapsed), timeutil.FormatRate(n, elapsed)))
}

func (s *Shell) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.dir, path)
}

func (s *Shell) localList() {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		s.printer.Error("Error listing local directory: " + err.Error())
		return
	}
	if len(infos) == 0 {
		s.printer.Println("No files in local directory")
		return
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	table := output.NewTableData("TYPE", "SIZE", "MODIFIED", "NAME")
	for _, info := range infos {
		kind, size := "FILE", humanize.IBytes(uint64(info.Size()))
		if info.IsDir() {
			kind, size = "DIR", "-"
		}
		table.AddRow(kind, size, timeutil.FormatTime(info.ModTime()), info.Name())
	}
	if err := output.PrintTable(s.out, table); err != nil {
		s.printer.Error(err.Error())
	}
}

func (s *Shell) localChdir(dir string) {
	target := s.resolve(dir)
	info, err := s.fs.Stat(target)
	if err != nil {
		s.printer.Error("Error changing directory: " + err.Error())
		return
	}
	if !info.IsDir() {
		s.printer.Error(fmt.Sprintf("Error changing directory: %s is not a directory", target))
		return
	}
	s.dir = filepath.Clean(target)
	s.printer.Println("Local directory changed to: " + s.dir)
}

func (s *Shell) printHelp() {
	s.printer.Info("Server commands:")
	for _, c := range serverCommands {
		s.printer.Printf("  %-28s %s\n", c.Text+c.args, c.Description)
	}
	s.printer.Info("Local commands:")
	for _, c := range localCommands {
		s.printer.Printf("  %-28s %s\n", c.Text+c.args, c.Description)
	}
}
