package server

import (
	"context"
	"strings"
	"time"

	"github.com/marmos91/distd/internal/logger"
	"github.com/marmos91/distd/pkg/protocol"
)

// commandFunc handles one verb. It returns false when the connection must
// be closed.
type commandFunc func(c *Connection, ctx context.Context, arg string) bool

// commands is the generic dispatch table. GET and PUT with a filename are
// routed to the transfer engine before this table is consulted.
var commands = map[string]commandFunc{
	"LIST": (*Connection).handleList,
	"STAT": (*Connection).handleStat,
	"SYST": (*Connection).handleSyst,
	"QUIT": (*Connection).handleQuit,
	"DEL":  (*Connection).handleDelete,
	"GET":  (*Connection).handleTransferFallback,
	"PUT":  (*Connection).handleTransferFallback,
}

// splitCommand separates the verb from its argument. The verb is
// upper-cased; the argument keeps its case and inner spaces.
func splitCommand(line string) (verb, arg string) {
	verb, arg, _ = strings.Cut(line, " ")
	return strings.ToUpper(verb), strings.TrimSpace(arg)
}

// dispatch handles one command line and reports whether to keep serving.
func (c *Connection) dispatch(ctx context.Context, line string) bool {
	start := time.Now()
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return c.sendReply(protocol.SyntaxError, "")
	}

	c.setState(StateDispatching)
	c.record(trimmed)
	c.server.stats.CommandProcessed()

	verb, arg := splitCommand(trimmed)
	ctx = logger.WithContext(ctx, c.logCtx.WithCommand(verb, arg))
	logger.DebugCtx(ctx, "Command received")

	keep := c.route(ctx, verb, arg)

	code := int(c.lastCode.Load())
	logger.DebugCtx(ctx, "Command complete",
		logger.Code(code), logger.DurationMs(logger.Duration(start)))

	if m := c.server.metrics; m != nil {
		label := verb
		if _, known := commands[verb]; !known {
			label = "UNKNOWN"
		}
		m.RecordCommand(label, code, time.Since(start))
	}
	return keep
}

func (c *Connection) route(ctx context.Context, verb, arg string) bool {
	if arg != "" {
		switch verb {
		case "GET":
			return c.handleGet(ctx, arg)
		case "PUT":
			return c.handlePut(ctx, arg)
		}
	}

	handler, ok := commands[verb]
	if !ok {
		return c.sendReply(protocol.NotImplemented, "Command '"+verb+"' not implemented")
	}
	return handler(c, ctx, arg)
}

// handleTransferFallback answers GET or PUT that reached the generic table,
// which only happens without a filename.
func (c *Connection) handleTransferFallback(_ context.Context, arg string) bool {
	if arg == "" {
		return c.sendReply(protocol.SyntaxErrorParam, "Filename required")
	}
	return c.sendReply(protocol.BadSequence, "Transfer commands are handled separately")
}

// sendError writes the reply for a failed operation and counts server-side
// failures.
func (c *Connection) sendError(ctx context.Context, rerr *replyError) bool {
	if !rerr.clientFault() {
		c.server.stats.Error()
		logger.WarnCtx(ctx, "Command failed", logger.Code(rerr.Code()), logger.Err(rerr.err))
	} else {
		logger.DebugCtx(ctx, "Command rejected", logger.Code(rerr.Code()), logger.Err(rerr.err))
	}
	return c.writeReply(rerr.reply()) == nil
}
