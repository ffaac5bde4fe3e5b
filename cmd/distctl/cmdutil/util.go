// Package cmdutil provides shared utilities for distctl commands.
package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"

	"github.com/marmos91/distd/internal/cli/contexts"
	"github.com/marmos91/distd/internal/cli/output"
	"github.com/marmos91/distd/internal/cli/prompt"
	"github.com/marmos91/distd/pkg/client"
	"github.com/marmos91/distd/pkg/server"
)

// DefaultHost is dialed when neither a flag nor a saved context names a
// server.
const DefaultHost = "localhost"

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	Server  string
	Timeout time.Duration
	Output  string
	NoColor bool
}

// ApplyPreferences fills flags the user did not set from the saved
// preferences.
func ApplyPreferences(prefs contexts.Preferences, outputSet, noColorSet bool) {
	if !outputSet && prefs.DefaultOutput != "" {
		Flags.Output = prefs.DefaultOutput
	}
	if !noColorSet && prefs.Color == "never" {
		Flags.NoColor = true
	}
	if Flags.NoColor {
		color.NoColor = true
	}
}

// ParseTarget turns the optional [host] [port] arguments into an address.
func ParseTarget(args []string) (string, error) {
	host, port := DefaultHost, strconv.Itoa(server.DefaultPort)
	if len(args) > 0 && args[0] != "" {
		host = args[0]
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 || n > 65535 {
			return "", fmt.Errorf("invalid port number: %s", args[1])
		}
		port = args[1]
	}
	return net.JoinHostPort(host, port), nil
}

// ResolveAddr picks the server address: positional arguments, then the
// --server flag, then the current context, then localhost.
// fromContext reports whether the saved context was used.
func ResolveAddr(args []string, store *contexts.Store) (addr string, fromContext bool, err error) {
	if len(args) > 0 {
		addr, err = ParseTarget(args)
		return addr, false, err
	}
	if Flags.Server != "" {
		return Flags.Server, false, nil
	}
	if store != nil {
		if ctx, err := store.GetCurrentContext(); err == nil && ctx.Addr != "" {
			return ctx.Addr, true, nil
		}
	}
	addr, err = ParseTarget(nil)
	return addr, false, err
}

// Connect opens a session with the server picked by ResolveAddr.
func Connect(ctx context.Context, args []string) (*client.Client, error) {
	store, err := contexts.NewStore()
	if err != nil {
		store = nil
	}

	addr, fromContext, err := ResolveAddr(args, store)
	if err != nil {
		return nil, err
	}

	c, err := client.Connect(ctx, addr, client.Options{
		DialTimeout: Flags.Timeout,
		Timeout:     Flags.Timeout,
	})
	if err != nil {
		return nil, DescribeConnectError(addr, err)
	}

	if fromContext {
		_ = store.Touch(time.Now())
	}
	return c, nil
}

// DescribeConnectError adds a hint for the usual reasons a dial fails.
func DescribeConnectError(addr string, err error) error {
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		return fmt.Errorf("could not resolve hostname %s: check the address and your network connection", dnsErr.Name)
	case errors.Is(err, client.ErrTimeout):
		return fmt.Errorf("connection to %s timed out: server might be unreachable or too slow to respond", addr)
	case isRefused(err):
		return fmt.Errorf("connection refused by %s: make sure the server is running and the address is correct", addr)
	}
	return fmt.Errorf("connect to %s: %w", addr, err)
}

func isRefused(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if errors.As(opErr.Err, &sysErr) {
		return sysErr.Syscall == "connect"
	}
	return false
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// ColorEnabled reports whether output may be colored: --no-color is unset
// and stdout is a terminal.
func ColorEnabled() bool {
	return !Flags.NoColor && !color.NoColor
}

// Printer returns a table-format printer on w honoring --no-color.
func Printer(w io.Writer) *output.Printer {
	return output.NewPrinter(w, output.FormatTable, ColorEnabled())
}

// PrintOutput prints data in the specified format (JSON, YAML, or table).
// For table format, it displays emptyMsg if data is empty, otherwise uses the tableRenderer.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}
	return output.Print(w, format, data, func() error {
		if isEmpty {
			_, _ = fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return output.PrintTable(w, tableRenderer)
	})
}

// PrintResult prints data as JSON or YAML, or msg as a success line in
// table format.
func PrintResult(w io.Writer, data any, msg string) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}
	return output.Print(w, format, data, func() error {
		Printer(w).Success(msg)
		return nil
	})
}

// RunDeleteWithConfirmation prompts for confirmation (unless force is true) and runs deleteFn.
func RunDeleteWithConfirmation(w io.Writer, resourceType, name string, force bool, deleteFn func() (string, error)) error {
	confirmed, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete %s '%s'?", resourceType, name), force)
	if err != nil {
		return HandleAbort(w, err)
	}
	if !confirmed {
		_, _ = fmt.Fprintln(w, "Aborted.")
		return nil
	}

	msg, err := deleteFn()
	if err != nil {
		return err
	}

	Printer(w).Success(EmptyOr(msg, fmt.Sprintf("%s '%s' deleted successfully", resourceType, name)))
	return nil
}

// HandleAbort checks if error is an abort (Ctrl+C) and prints a message.
// Returns nil for abort (user cancelled), otherwise returns the original error.
func HandleAbort(w io.Writer, err error) error {
	if errors.Is(err, prompt.ErrAborted) {
		_, _ = fmt.Fprintln(w, "\nAborted.")
		return nil
	}
	return err
}

// BoolToYesNo converts a boolean to "yes" or "no" string.
func BoolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// EmptyOr returns the value if not empty, otherwise returns the fallback.
// Useful for table display where empty fields should show "-".
func EmptyOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
