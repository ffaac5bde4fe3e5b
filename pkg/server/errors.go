package server

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/marmos91/distd/pkg/adapter"
	"github.com/marmos91/distd/pkg/protocol"
	"github.com/marmos91/distd/pkg/store"
)

// errTransferIncomplete is returned when an upload stream ends before its
// FILE_END sentinel.
var errTransferIncomplete = errors.New("file transfer interrupted or incomplete")

// errConnClosing is returned when a transfer is refused because the
// connection is being evicted or shut down.
var errConnClosing = errors.New("connection closing")

// connLost reports whether err means the socket itself is gone, as opposed
// to a timeout or a local file error that leaves the session usable.
func connLost(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return !opErr.Timeout()
	}
	return false
}

// replyError is a failure already translated to the reply sent to the
// client.
type replyError struct {
	kind protocol.Kind
	msg  string
	err  error
}

var _ adapter.ProtocolError = (*replyError)(nil)

func (e *replyError) Error() string {
	return fmt.Sprintf("%d %s: %v", e.Code(), e.msg, e.err)
}

func (e *replyError) Code() int       { return e.kind.Code() }
func (e *replyError) Message() string { return e.msg }
func (e *replyError) Unwrap() error   { return e.err }

func (e *replyError) reply() protocol.Reply {
	return protocol.NewReply(e.kind, e.msg)
}

// clientFault reports whether the failure was caused by the request rather
// than by the server, so it is not counted as a server error.
func (e *replyError) clientFault() bool {
	return e.kind == protocol.FileUnavailable || e.kind == protocol.FilenameNotAllowed
}

// replyForError maps a domain error for the named file to its reply.
func replyForError(err error, name string) *replyError {
	switch {
	case errors.Is(err, store.ErrInvalidName):
		return &replyError{protocol.FilenameNotAllowed, "File name not allowed: " + name, err}
	case errors.Is(err, store.ErrNotFound):
		return &replyError{protocol.FileUnavailable, "File not found: " + name, err}
	case errors.Is(err, store.ErrExists):
		return &replyError{protocol.FileUnavailable, "File already exists: " + name, err}
	case errors.Is(err, store.ErrIsDir):
		return &replyError{protocol.FileUnavailable, name + " is a directory, not a file", err}
	case errors.Is(err, store.ErrTooLarge):
		return &replyError{protocol.ExceededStorage, "File exceeds maximum allowed size: " + name, err}
	case errors.Is(err, errTransferIncomplete):
		return &replyError{protocol.LocalError, "File transfer interrupted or incomplete", err}
	default:
		return &replyError{protocol.LocalError, "Error: " + err.Error(), err}
	}
}
