// Package stats holds the process-wide transfer counters shared by every
// connection handler.
//
// All counters live behind a single mutex so a Snapshot is always
// internally consistent. The Aggregator is passed by reference to the
// components that update it; there is no package-level instance.
package stats

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Aggregator accumulates server-wide counters. The zero value is not usable;
// create one with New.
type Aggregator struct {
	mu sync.Mutex

	startedAt         time.Time
	connections       uint64
	commandsProcessed uint64
	filesTransferred  uint64
	bytesSent         uint64
	bytesReceived     uint64
	errors            uint64

	now func() time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	StartedAt         time.Time     `json:"started_at"`
	Uptime            time.Duration `json:"uptime_ns"`
	Connections       uint64        `json:"connections"`
	CommandsProcessed uint64        `json:"commands_processed"`
	FilesTransferred  uint64        `json:"files_transferred"`
	BytesSent         uint64        `json:"bytes_sent"`
	BytesReceived     uint64        `json:"bytes_received"`
	Errors            uint64        `json:"errors"`
}

// New returns an Aggregator whose uptime starts now.
func New() *Aggregator {
	return newWithClock(time.Now)
}

func newWithClock(now func() time.Time) *Aggregator {
	return &Aggregator{startedAt: now(), now: now}
}

// ConnectionAccepted counts a new client connection.
func (a *Aggregator) ConnectionAccepted() {
	a.mu.Lock()
	a.connections++
	a.mu.Unlock()
}

// CommandProcessed counts one dispatched command line.
func (a *Aggregator) CommandProcessed() {
	a.mu.Lock()
	a.commandsProcessed++
	a.mu.Unlock()
}

// FileTransferred counts one completed GET or PUT.
func (a *Aggregator) FileTransferred() {
	a.mu.Lock()
	a.filesTransferred++
	a.mu.Unlock()
}

// AddBytesSent adds n payload bytes sent to clients.
func (a *Aggregator) AddBytesSent(n int64) {
	if n <= 0 {
		return
	}
	a.mu.Lock()
	a.bytesSent += uint64(n)
	a.mu.Unlock()
}

// AddBytesReceived adds n payload bytes received from clients.
func (a *Aggregator) AddBytesReceived(n int64) {
	if n <= 0 {
		return
	}
	a.mu.Lock()
	a.bytesReceived += uint64(n)
	a.mu.Unlock()
}

// Error counts a failed operation.
func (a *Aggregator) Error() {
	a.mu.Lock()
	a.errors++
	a.mu.Unlock()
}

// Snapshot returns a consistent copy of every counter.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Snapshot{
		StartedAt:         a.startedAt,
		Uptime:            a.now().Sub(a.startedAt),
		Connections:       a.connections,
		CommandsProcessed: a.commandsProcessed,
		FilesTransferred:  a.filesTransferred,
		BytesSent:         a.bytesSent,
		BytesReceived:     a.bytesReceived,
		Errors:            a.errors,
	}
}

// Lines renders the snapshot as the indented report used by STAT and the
// shutdown log.
func (s Snapshot) Lines() []string {
	return []string{
		"Server Statistics:",
		"  Uptime: " + FormatUptime(s.Uptime),
		fmt.Sprintf("  Connections: %d", s.Connections),
		fmt.Sprintf("  Commands processed: %d", s.CommandsProcessed),
		fmt.Sprintf("  Files transferred: %d", s.FilesTransferred),
		"  Bytes sent: " + humanize.Comma(clamp(s.BytesSent)),
		"  Bytes received: " + humanize.Comma(clamp(s.BytesReceived)),
		fmt.Sprintf("  Errors: %d", s.Errors),
	}
}

// FormatUptime renders d as "<d>d <h>h <m>m <s>s".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	total %= 86400
	hours := total / 3600
	total %= 3600
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, total/60, total%60)
}

func clamp(v uint64) int64 {
	const maxInt64 = 1<<63 - 1
	if v > maxInt64 {
		return maxInt64
	}
	return int64(v)
}
