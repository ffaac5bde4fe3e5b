package server

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/distd/internal/logger"
	"github.com/marmos91/distd/internal/telemetry"
	"github.com/marmos91/distd/pkg/bufpool"
	"github.com/marmos91/distd/pkg/metrics"
	"github.com/marmos91/distd/pkg/protocol"
	"github.com/marmos91/distd/pkg/store"
)

// handlePut receives a file from the client into "<name>.part" and renames
// it into place once FILE_END has been seen:
//
//	server: 150 <phrase> Ready to receive file: <name>
//	server: READY_FOR_FILE\r\n
//	client: FILE_START\r\n<payload>FILE_END\r\n
//	server: 226 <phrase> File <name> received and saved successfully
//
// A failed upload is aborted with a coded reply. The session stays open
// unless the socket itself was lost.
func (c *Connection) handlePut(ctx context.Context, name string) bool {
	ctx, span := telemetry.StartTransferSpan(ctx, telemetry.SpanPut, c.id, c.addr, name)

	up, err := c.server.store.Create(name, c.server.config.MaxFileSize)
	if err != nil {
		rerr := replyForError(err, name)
		telemetry.EndTransferSpan(span, rerr.Code(), 0, err)
		return c.sendError(ctx, rerr)
	}

	if !c.beginTransfer() {
		_ = up.Abort()
		telemetry.EndTransferSpan(span, protocol.LocalError.Code(), 0, errConnClosing)
		return false
	}
	defer c.endTransfer()

	start := time.Now()
	if m := c.server.metrics; m != nil {
		m.RecordTransferStart(metrics.DirectionUpload)
	}

	received, err := c.receiveUpload(up)
	elapsed := time.Since(start)

	if err != nil {
		if abortErr := up.Abort(); abortErr != nil {
			logger.WarnCtx(ctx, "Failed to remove partial upload", logger.Filename(name), logger.Err(abortErr))
		}
		rerr := replyForError(err, name)
		keep := c.sendError(ctx, rerr)
		telemetry.EndTransferSpan(span, rerr.Code(), received, err)
		c.recordTransferEnd(metrics.DirectionUpload, metrics.OutcomeAborted, received, elapsed)

		if connLost(err) {
			return false
		}
		return keep
	}

	c.server.stats.FileTransferred()
	logger.InfoCtx(ctx, "File received",
		logger.Filename(name), logger.Size(received),
		logger.DurationMs(float64(elapsed.Microseconds())/1000.0),
		logger.KeyRate, transferRate(received, elapsed))
	telemetry.EndTransferSpan(span, protocol.FileStatusOK.Code(), received, nil)
	c.recordTransferEnd(metrics.DirectionUpload, metrics.OutcomeSuccess, received, elapsed)

	return c.sendReply(protocol.FileStatusOK, fmt.Sprintf("File %s received and saved successfully", name))
}

// receiveUpload performs the handshake and copies the framed payload into
// up, committing it on success. A store write error does not stop the read
// loop: the payload is drained up to FILE_END so the connection stays in
// sync, and the error is returned afterwards.
func (c *Connection) receiveUpload(up *store.Upload) (int64, error) {
	if err := c.writeReply(protocol.NewReply(protocol.EnteringTransfer, "Ready to receive file: "+up.Name())); err != nil {
		return 0, fmt.Errorf("%w: %w", errTransferIncomplete, err)
	}
	if err := c.writeRaw(protocol.ReadyForFile); err != nil {
		return 0, fmt.Errorf("%w: %w", errTransferIncomplete, err)
	}

	writeErr, err := c.receivePayload(up)
	if err != nil {
		return up.Written(), err
	}
	if writeErr != nil {
		return up.Written(), writeErr
	}
	if err := up.Commit(); err != nil {
		return up.Written(), err
	}
	return up.Written(), nil
}

// receivePayload reads chunks until FILE_END. Bytes before FILE_START are
// discarded; bytes read past FILE_END are pushed back to the line reader
// for the next command. writeErr is the first error returned by up; err is
// a read failure that left the payload incomplete.
func (c *Connection) receivePayload(up *store.Upload) (writeErr, err error) {
	buf := bufpool.Get(c.server.config.ChunkSize)
	defer bufpool.Put(buf)

	startScan := protocol.NewScanner(protocol.FileStart)
	endScan := protocol.NewScanner(protocol.FileEnd)

	for {
		if derr := c.conn.SetReadDeadline(time.Now().Add(c.server.config.Timeouts.Read)); derr != nil {
			return writeErr, fmt.Errorf("%w: %w", errTransferIncomplete, derr)
		}
		n, rerr := c.reader.Read(buf)

		if n > 0 {
			chunk := buf[:n]
			if !startScan.Found() {
				_, found, after := startScan.Feed(chunk)
				chunk = nil
				if found {
					chunk = after
				}
			}

			if startScan.Found() {
				before, found, after := endScan.Feed(chunk)
				if writeErr == nil && len(before) > 0 {
					if _, werr := up.Write(before); werr != nil {
						writeErr = werr
					}
				}
				if found {
					c.reader.Unread(after)
					return writeErr, nil
				}
			}
		}

		if rerr != nil {
			return writeErr, fmt.Errorf("%w: %w", errTransferIncomplete, rerr)
		}
	}
}
