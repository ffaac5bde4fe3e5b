package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marmos91/distd/pkg/bufpool"
	"github.com/marmos91/distd/pkg/protocol"
)

// partSuffix marks a download that has not completed yet.
const partSuffix = ".part"

// Put uploads the local file at localPath as remoteName. An empty
// remoteName uses the local base name.
func (c *Client) Put(ctx context.Context, localPath, remoteName string) (int64, error) {
	f, err := c.opts.Fs.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", localPath, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", localPath)
	}

	if remoteName == "" {
		remoteName = filepath.Base(localPath)
	}
	return c.PutReader(ctx, f, remoteName)
}

// PutReader uploads everything read from r as remoteName.
//
// The framing cannot carry a payload that contains "FILE_END\r\n". If r
// does, the upload is cut at the sentinel, the truncated remote file is
// deleted and ErrSentinelInPayload is returned.
func (c *Client) PutReader(ctx context.Context, r io.Reader, remoteName string) (int64, error) {
	var sent int64
	err := c.op(ctx, "PUT "+remoteName, func() error {
		reply, err := c.command("PUT " + remoteName)
		if err != nil {
			return err
		}
		if reply.Code != protocol.EnteringTransfer.Code() {
			return classify("PUT", reply)
		}

		line, err := c.readLine()
		if err != nil {
			return err
		}
		if line != protocol.SentinelLine(protocol.ReadyForFile) {
			c.broken = true
			return violation("expected READY_FOR_FILE, got %q", line)
		}

		if err := c.write(protocol.FileStart); err != nil {
			return err
		}
		var payloadErr error
		sent, payloadErr = c.sendPayload(r)
		if c.broken {
			return payloadErr
		}
		if err := c.write(protocol.FileEnd); err != nil {
			return err
		}

		reply, err = c.readReply()
		if err != nil {
			return err
		}
		if reply.Code != protocol.FileStatusOK.Code() {
			return classify("PUT", reply)
		}

		if payloadErr != nil {
			// The server committed a truncated file.
			c.discardRemote(remoteName)
			return payloadErr
		}

		c.stats.update(func(s *Stats) {
			s.FilesTransferred++
			s.BytesSent += sent
		})
		return nil
	})
	return sent, err
}

// sendPayload copies r to the connection. Local read failures and a
// sentinel inside the payload stop the copy without breaking the session.
func (c *Client) sendPayload(r io.Reader) (int64, error) {
	buf := bufpool.Get(c.opts.ChunkSize)
	defer bufpool.Put(buf)

	scan := protocol.NewScanner(protocol.FileEnd)
	var sent int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			before, found, _ := scan.Feed(buf[:n])
			if err := c.write(before); err != nil {
				return sent, err
			}
			sent += int64(len(before))
			if found {
				return sent, ErrSentinelInPayload
			}
			c.renew()
		}
		if errors.Is(rerr, io.EOF) {
			tail := scan.Pending()
			if err := c.write(tail); err != nil {
				return sent, err
			}
			return sent + int64(len(tail)), nil
		}
		if rerr != nil {
			return sent, fmt.Errorf("read payload: %w", rerr)
		}
	}
}

// discardRemote deletes a remote file inside a running operation,
// ignoring the outcome.
func (c *Client) discardRemote(name string) {
	_, _ = c.command("DEL " + name)
}

// Get downloads remoteName into w and returns the number of payload bytes.
//
// The payload length comes from the Size line of the transfer header. If w
// fails, the rest of the payload is still read so the session stays usable,
// and the write error is returned.
func (c *Client) Get(ctx context.Context, remoteName string, w io.Writer) (int64, error) {
	var received int64
	err := c.op(ctx, "GET "+remoteName, func() error {
		reply, err := c.command("GET " + remoteName)
		if err != nil {
			return err
		}
		if reply.Code != protocol.EnteringTransfer.Code() {
			return classify("GET", reply)
		}

		header, err := c.readBody()
		if err != nil {
			return err
		}
		size, err := parseSize(header)
		if err != nil {
			c.broken = true
			return err
		}

		line, err := c.readLine()
		if err != nil {
			return err
		}
		if line != protocol.SentinelLine(protocol.FileStart) {
			c.broken = true
			return violation("expected FILE_START, got %q", line)
		}

		var sinkErr error
		received, sinkErr, err = c.receivePayload(w, size)
		if err != nil {
			return err
		}

		line, err = c.readLine()
		if err != nil {
			return err
		}
		if line != protocol.SentinelLine(protocol.FileEnd) {
			c.broken = true
			return violation("expected FILE_END after %d bytes, got %q", size, line)
		}
		if sinkErr != nil {
			return fmt.Errorf("write %s: %w", remoteName, sinkErr)
		}

		c.stats.update(func(s *Stats) {
			s.FilesTransferred++
			s.BytesReceived += received
		})
		return nil
	})
	return received, err
}

func (c *Client) receivePayload(w io.Writer, size int64) (n int64, sinkErr, err error) {
	buf := bufpool.Get(c.opts.ChunkSize)
	defer bufpool.Put(buf)

	for n < size {
		chunk := buf
		if remaining := size - n; remaining < int64(len(chunk)) {
			chunk = chunk[:remaining]
		}
		m, rerr := c.reader.Read(chunk)
		if m > 0 {
			if sinkErr == nil {
				_, sinkErr = w.Write(chunk[:m])
			}
			n += int64(m)
			c.renew()
		}
		if rerr != nil {
			c.broken = true
			if errors.Is(rerr, io.EOF) {
				return n, sinkErr, violation("payload truncated at %d of %d bytes", n, size)
			}
			return n, sinkErr, wrapNetErr("read payload", rerr)
		}
	}
	return n, sinkErr, nil
}

// GetFile downloads remoteName to localPath. Data is written to
// "<localPath>.part" and renamed into place only when complete.
func (c *Client) GetFile(ctx context.Context, remoteName, localPath string) (int64, error) {
	fs := c.opts.Fs
	tmp := localPath + partSuffix

	f, err := fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}

	n, err := c.Get(ctx, remoteName, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close %s: %w", tmp, closeErr)
	}
	if err != nil {
		_ = fs.Remove(tmp)
		return n, err
	}
	if err := fs.Rename(tmp, localPath); err != nil {
		_ = fs.Remove(tmp)
		return n, fmt.Errorf("rename %s: %w", tmp, err)
	}
	return n, nil
}

// parseSize extracts the payload length from a GET transfer header.
func parseSize(header []string) (int64, error) {
	for _, line := range header {
		var size int64
		if _, err := fmt.Sscanf(line, "Size: %d bytes", &size); err == nil {
			if size < 0 {
				break
			}
			return size, nil
		}
	}
	return 0, violation("transfer header has no size: %q", header)
}
