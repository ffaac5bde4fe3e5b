package server

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/distd/internal/logger"
	"github.com/marmos91/distd/internal/telemetry"
	"github.com/marmos91/distd/pkg/protocol"
	"github.com/marmos91/distd/pkg/store"
)

// listTimeFormat is the modification time layout in LIST rows.
const listTimeFormat = "2006-01-02 15:04:05"

// FormatListRow renders one LIST row: type, size, modification time, name.
func FormatListRow(e store.Entry) string {
	size := humanize.Comma(e.Size) + " bytes"
	return fmt.Sprintf("%-6s %-15s %s %s", e.Type(), size, e.ModTime.Format(listTimeFormat), e.Name)
}

func (c *Connection) handleList(ctx context.Context, _ string) bool {
	entries, err := c.server.store.List()
	if err != nil {
		return c.sendError(ctx, replyForError(err, ""))
	}
	if len(entries) == 0 {
		return c.writeReply(protocol.NewBodyReply(protocol.CmdOK, "No files in directory", nil)) == nil
	}

	rows := make([]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, FormatListRow(e))
	}
	return c.writeReply(protocol.NewBodyReply(protocol.CmdOK, "", rows)) == nil
}

func (c *Connection) handleStat(_ context.Context, _ string) bool {
	lines := c.server.stats.Snapshot().Lines()
	lines = append(lines,
		fmt.Sprintf("  Active clients: %d", c.server.registry.Len()),
		"",
		"Your Connection:",
		"  Connected from: "+c.addr,
		"  Connected since: "+c.connectedAt.Format(listTimeFormat),
		fmt.Sprintf("  Idle time: %d seconds", int64(c.IdleFor(time.Now()).Seconds())),
		fmt.Sprintf("  Commands executed: %d", c.CommandCount()),
		"  Bytes sent: "+humanize.Comma(c.bytesSent.Load()),
		"  Bytes received: "+humanize.Comma(c.bytesReceived.Load()),
	)
	return c.writeReply(protocol.NewBodyReply(protocol.CmdOK, lines[0], lines[1:])) == nil
}

func (c *Connection) handleSyst(_ context.Context, _ string) bool {
	return c.sendReply(protocol.CmdOK, SystemType())
}

// SystemType is the static SYST answer.
func SystemType() string {
	return fmt.Sprintf("distd (%s/%s)", runtime.GOOS, runtime.GOARCH)
}

func (c *Connection) handleQuit(ctx context.Context, _ string) bool {
	logger.DebugCtx(ctx, "Client quit")
	_ = c.writeReply(protocol.NewReply(protocol.Goodbye, "Goodbye"))
	return false
}

func (c *Connection) handleDelete(ctx context.Context, name string) bool {
	if name == "" {
		return c.sendReply(protocol.SyntaxErrorParam, "Filename required")
	}

	ctx, span := telemetry.StartTransferSpan(ctx, telemetry.SpanDel, c.id, c.addr, name)
	if err := c.server.store.Delete(name); err != nil {
		rerr := replyForError(err, name)
		telemetry.EndTransferSpan(span, rerr.Code(), 0, err)
		return c.sendError(ctx, rerr)
	}
	telemetry.EndTransferSpan(span, protocol.CmdOK.Code(), 0, nil)

	logger.InfoCtx(ctx, "File deleted", logger.Filename(name))
	return c.sendReply(protocol.CmdOK, fmt.Sprintf("File %s deleted successfully", name))
}
