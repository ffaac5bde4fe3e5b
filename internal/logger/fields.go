package logger

import (
	"log/slog"
)

// Standard field keys. Use these consistently so logs can be queried by key.
const (
	KeyTraceID = "trace_id"

	// Connection
	KeyConnID     = "conn_id"
	KeyClientAddr = "client_addr"
	KeyState      = "state"
	KeyActive     = "active"
	KeyIdle       = "idle"

	// Commands and replies
	KeyCommand = "command"
	KeyArgs    = "args"
	KeyCode    = "code"

	// Files and transfers
	KeyFilename = "filename"
	KeySize     = "size"
	KeyBytes    = "bytes"
	KeyRate     = "rate"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyAddress    = "address"
)

// ConnID returns a slog.Attr for the connection identifier.
func ConnID(id string) slog.Attr {
	return slog.String(KeyConnID, id)
}

// ClientAddr returns a slog.Attr for the peer address.
func ClientAddr(addr string) slog.Attr {
	return slog.String(KeyClientAddr, addr)
}

// Command returns a slog.Attr for a protocol verb.
func Command(verb string) slog.Attr {
	return slog.String(KeyCommand, verb)
}

// Code returns a slog.Attr for a reply code.
func Code(code int) slog.Attr {
	return slog.Int(KeyCode, code)
}

// Filename returns a slog.Attr for a remote file name.
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// Size returns a slog.Attr for a file size.
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// Bytes returns a slog.Attr for a transferred byte count.
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error. A nil error yields an empty attr,
// which handlers skip.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
