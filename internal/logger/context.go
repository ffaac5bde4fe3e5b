package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds connection-scoped logging fields.
type LogContext struct {
	TraceID    string    // OpenTelemetry trace ID of the active transfer span
	ConnID     string    // Connection identifier assigned at accept time
	ClientAddr string    // Peer address (host:port)
	Command    string    // Verb being processed (LIST, GET, PUT, ...)
	Filename   string    // Remote file name for file commands
	StartTime  time.Time // For duration calculation
}

// WithContext returns a new context carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext returns the LogContext stored in ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for a freshly accepted connection.
func NewLogContext(connID, clientAddr string) *LogContext {
	return &LogContext{
		ConnID:     connID,
		ClientAddr: clientAddr,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithCommand returns a copy with the command and file name set.
// The start time is reset so DurationMs measures the command alone.
func (lc *LogContext) WithCommand(command, filename string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Command = command
		clone.Filename = filename
		clone.StartTime = time.Now()
	}
	return clone
}

// WithTrace returns a copy with the trace id set.
func (lc *LogContext) WithTrace(traceID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
