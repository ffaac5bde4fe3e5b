package client

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
)

// Stats counts the work done by one client session.
type Stats struct {
	CommandsSent     int
	FilesTransferred int
	BytesSent        int64
	BytesReceived    int64
	Errors           int
}

// Lines renders the statistics as the summary printed when a session ends.
func (s Stats) Lines() []string {
	return []string{
		"Client Statistics:",
		fmt.Sprintf("  Commands sent: %d", s.CommandsSent),
		fmt.Sprintf("  Files transferred: %d", s.FilesTransferred),
		"  Bytes sent: " + humanize.Comma(s.BytesSent),
		"  Bytes received: " + humanize.Comma(s.BytesReceived),
		fmt.Sprintf("  Errors: %d", s.Errors),
	}
}

type statsRecorder struct {
	mu sync.Mutex
	s  Stats
}

func (r *statsRecorder) update(fn func(*Stats)) {
	r.mu.Lock()
	fn(&r.s)
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s
}
