package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/distd/internal/logger"
	"github.com/marmos91/distd/internal/telemetry"
	"github.com/marmos91/distd/pkg/bufpool"
	"github.com/marmos91/distd/pkg/metrics"
	"github.com/marmos91/distd/pkg/protocol"
	"github.com/marmos91/distd/pkg/store"
)

// errSizeChanged is returned when a file shrinks while it is being sent.
var errSizeChanged = errors.New("file changed during transfer")

// handleGet streams a stored file to the client:
//
//	150 <phrase>
//	File: <name>
//	Size: <n> bytes
//	<empty line>
//	FILE_START\r\n<n payload bytes>FILE_END\r\n
//
// No completion reply follows a successful transfer. A failure after the
// header is reported with a best-effort LOCAL_ERROR in place of FILE_END and
// the session stays open unless the socket itself was lost.
func (c *Connection) handleGet(ctx context.Context, name string) bool {
	ctx, span := telemetry.StartTransferSpan(ctx, telemetry.SpanGet, c.id, c.addr, name)

	f, entry, err := c.server.store.Open(name)
	if err != nil {
		rerr := replyForError(err, name)
		telemetry.EndTransferSpan(span, rerr.Code(), 0, err)
		return c.sendError(ctx, rerr)
	}
	defer func() { _ = f.Close() }()

	if !c.beginTransfer() {
		telemetry.EndTransferSpan(span, protocol.LocalError.Code(), 0, errConnClosing)
		return false
	}
	defer c.endTransfer()

	start := time.Now()
	if m := c.server.metrics; m != nil {
		m.RecordTransferStart(metrics.DirectionDownload)
	}

	sent, err := c.streamFile(f, entry)
	elapsed := time.Since(start)

	if err != nil {
		c.server.stats.Error()
		logger.WarnCtx(ctx, "File send failed",
			logger.Filename(name), logger.Bytes(sent), logger.Err(err))
		telemetry.EndTransferSpan(span, protocol.LocalError.Code(), sent, err)
		c.recordTransferEnd(metrics.DirectionDownload, metrics.OutcomeAborted, sent, elapsed)
		if connLost(err) {
			return false
		}
		return c.writeReply(protocol.NewReply(protocol.LocalError, "Error sending file: "+err.Error())) == nil
	}

	c.server.stats.FileTransferred()
	logger.InfoCtx(ctx, "File sent",
		logger.Filename(name), logger.Size(entry.Size),
		logger.DurationMs(float64(elapsed.Microseconds())/1000.0),
		logger.KeyRate, transferRate(sent, elapsed))
	telemetry.EndTransferSpan(span, protocol.EnteringTransfer.Code(), sent, nil)
	c.recordTransferEnd(metrics.DirectionDownload, metrics.OutcomeSuccess, sent, elapsed)
	return true
}

// streamFile writes the transfer header, the framed payload and the end
// sentinel. It returns the payload bytes written.
func (c *Connection) streamFile(f io.Reader, entry store.Entry) (int64, error) {
	header := protocol.NewBodyReply(protocol.EnteringTransfer, "", []string{
		"File: " + entry.Name,
		fmt.Sprintf("Size: %d bytes", entry.Size),
	})
	if err := c.writeReply(header); err != nil {
		return 0, fmt.Errorf("send header: %w", err)
	}
	if err := c.writeRaw(protocol.FileStart); err != nil {
		return 0, fmt.Errorf("send start sentinel: %w", err)
	}

	buf := bufpool.Get(c.server.config.ChunkSize)
	defer bufpool.Put(buf)

	// Only the announced size is sent, even if the file grows meanwhile.
	src := io.LimitReader(f, entry.Size)
	refresh := c.server.config.ActivityRefreshBytes

	var sent, sinceRefresh int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if err := c.writeRaw(buf[:n]); err != nil {
				return sent, fmt.Errorf("send payload: %w", err)
			}
			sent += int64(n)
			sinceRefresh += int64(n)
			if sinceRefresh >= refresh {
				c.touch()
				sinceRefresh = 0
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return sent, fmt.Errorf("read %s: %w", entry.Name, rerr)
		}
	}

	if sent != entry.Size {
		return sent, fmt.Errorf("%w: sent %d of %d bytes", errSizeChanged, sent, entry.Size)
	}
	if err := c.writeRaw(protocol.FileEnd); err != nil {
		return sent, fmt.Errorf("send end sentinel: %w", err)
	}
	return sent, nil
}

func (c *Connection) recordTransferEnd(direction, outcome string, bytes int64, d time.Duration) {
	if m := c.server.metrics; m != nil {
		m.RecordTransferEnd(direction, outcome, bytes, d)
	}
}

// transferRate formats bytes over d as a human readable rate.
func transferRate(bytes int64, d time.Duration) string {
	if d <= 0 || bytes <= 0 {
		return "0 B/s"
	}
	perSec := float64(bytes) / d.Seconds()
	return humanize.IBytes(uint64(perSec)) + "/s"
}
