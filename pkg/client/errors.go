package client

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/marmos91/distd/pkg/protocol"
)

var (
	// ErrNotFound is returned when the server reports the file is missing.
	ErrNotFound = errors.New("file not found")

	// ErrConflict is returned when PUT targets a name that already exists.
	ErrConflict = errors.New("file already exists")

	// ErrTimeout is returned when a network operation times out.
	ErrTimeout = errors.New("operation timed out")

	// ErrProtocolViolation is returned when the server sends something the
	// protocol does not allow at that point: an unexpected code, a missing
	// sentinel or a payload of the wrong length.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("client closed")

	// ErrServerClosed is returned when the server answers with a goodbye
	// instead of a reply, after an idle timeout or during shutdown.
	ErrServerClosed = errors.New("server closed the connection")

	// ErrSentinelInPayload is returned by PUT when the payload itself
	// contains the FILE_END sentinel, which the framing cannot carry.
	ErrSentinelInPayload = errors.New("payload contains the FILE_END sentinel")
)

// ReplyError is a coded failure reply from the server. It unwraps to
// ErrNotFound or ErrConflict when the reply means one of those.
type ReplyError struct {
	Command string
	Code    int
	Text    string

	kind error
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("%s: server replied %d %s", e.Command, e.Code, e.Text)
}

func (e *ReplyError) Unwrap() error {
	return e.kind
}

// classify turns a reply that is not the expected success into an error.
func classify(command string, r protocol.ParsedReply) error {
	if r.Code == protocol.Goodbye.Code() {
		return fmt.Errorf("%s: %w: %s", command, ErrServerClosed, r.Text)
	}
	if r.Positive() {
		return fmt.Errorf("%w: %s: unexpected reply %s", ErrProtocolViolation, command, r)
	}

	rerr := &ReplyError{Command: command, Code: r.Code, Text: r.Text}
	if r.Code == protocol.FileUnavailable.Code() {
		// The fixed phrase itself mentions "file not found".
		detail := textOf(protocol.FileUnavailable, r)
		switch {
		case strings.Contains(detail, "already exists"):
			rerr.kind = ErrConflict
		case strings.Contains(detail, "not found"):
			rerr.kind = ErrNotFound
		}
	}
	return rerr
}

// wrapNetErr maps transport failures to the package's error values.
func wrapNetErr(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...))
}
