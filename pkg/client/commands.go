package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/distd/pkg/protocol"
)

// listTimeLayout is the modification time layout of LIST rows.
const listTimeLayout = "2006-01-02 15:04:05"

// Entry is one parsed LIST row.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// Delete removes a remote file and returns the server's acknowledgement.
func (c *Client) Delete(ctx context.Context, name string) (string, error) {
	var ack string
	err := c.op(ctx, "DEL "+name, func() error {
		r, err := c.command("DEL " + name)
		if err != nil {
			return err
		}
		if r.Code != protocol.CmdOK.Code() {
			return classify("DEL", r)
		}
		ack = textOf(protocol.CmdOK, r)
		return nil
	})
	return ack, err
}

// List returns the directory listing as sent by the server.
func (c *Client) List(ctx context.Context) (string, error) {
	head, rows, err := c.multiline(ctx, "LIST")
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return head, nil
	}
	return strings.Join(rows, "\n"), nil
}

// ListEntries returns the directory listing parsed into entries.
func (c *Client) ListEntries(ctx context.Context) ([]Entry, error) {
	_, rows, err := c.multiline(ctx, "LIST")
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		e, err := ParseListRow(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Stat returns the server statistics report.
func (c *Client) Stat(ctx context.Context) (string, error) {
	head, body, err := c.multiline(ctx, "STAT")
	if err != nil {
		return "", err
	}
	return strings.Join(append([]string{head}, body...), "\n"), nil
}

// Syst returns the server's system type.
func (c *Client) Syst(ctx context.Context) (string, error) {
	var text string
	err := c.op(ctx, "SYST", func() error {
		r, err := c.command("SYST")
		if err != nil {
			return err
		}
		if r.Code != protocol.CmdOK.Code() {
			return classify("SYST", r)
		}
		text = textOf(protocol.CmdOK, r)
		return nil
	})
	return text, err
}

// Quit says goodbye and closes the connection.
func (c *Client) Quit(ctx context.Context) error {
	err := c.op(ctx, "QUIT", func() error {
		r, err := c.command("QUIT")
		if err != nil {
			return err
		}
		if r.Code != protocol.Goodbye.Code() {
			return classify("QUIT", r)
		}
		return nil
	})
	if closeErr := c.Close(); err == nil {
		err = closeErr
	}
	return err
}

// multiline runs a command answered by a 200 reply with a body.
func (c *Client) multiline(ctx context.Context, verb string) (head string, body []string, err error) {
	err = c.op(ctx, verb, func() error {
		r, err := c.command(verb)
		if err != nil {
			return err
		}
		if r.Code != protocol.CmdOK.Code() {
			return classify(verb, r)
		}
		head = textOf(protocol.CmdOK, r)
		body, err = c.readBody()
		return err
	})
	return head, body, err
}

// ParseListRow parses one LIST row: type, size, modification time, name.
func ParseListRow(row string) (Entry, error) {
	fields := strings.Fields(row)
	if len(fields) < 6 || fields[2] != "bytes" {
		return Entry{}, violation("malformed LIST row %q", row)
	}

	size, err := strconv.ParseInt(strings.ReplaceAll(fields[1], ",", ""), 10, 64)
	if err != nil {
		return Entry{}, violation("malformed size in LIST row %q", row)
	}

	stamp := fields[3] + " " + fields[4]
	mtime, err := time.ParseInLocation(listTimeLayout, stamp, time.Local)
	if err != nil {
		return Entry{}, violation("malformed time in LIST row %q", row)
	}

	idx := strings.Index(row, stamp)
	name := row[idx+len(stamp)+1:]

	var isDir bool
	switch fields[0] {
	case "FILE":
	case "DIR":
		isDir = true
	default:
		return Entry{}, fmt.Errorf("%w: unknown entry type %q", ErrProtocolViolation, fields[0])
	}

	return Entry{Name: name, Size: size, ModTime: mtime, IsDir: isDir}, nil
}
