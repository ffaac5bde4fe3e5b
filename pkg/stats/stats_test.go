package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorCounters(t *testing.T) {
	a := New()

	a.ConnectionAccepted()
	a.ConnectionAccepted()
	a.CommandProcessed()
	a.FileTransferred()
	a.AddBytesSent(1500)
	a.AddBytesReceived(42)
	a.AddBytesSent(-10)
	a.Error()

	s := a.Snapshot()
	assert.Equal(t, uint64(2), s.Connections)
	assert.Equal(t, uint64(1), s.CommandsProcessed)
	assert.Equal(t, uint64(1), s.FilesTransferred)
	assert.Equal(t, uint64(1500), s.BytesSent)
	assert.Equal(t, uint64(42), s.BytesReceived)
	assert.Equal(t, uint64(1), s.Errors)
}

func TestAggregatorConcurrentUpdates(t *testing.T) {
	a := New()

	const workers = 32
	const perWorker = 500

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				a.CommandProcessed()
				a.AddBytesSent(2)
				if j%100 == 0 {
					a.FileTransferred()
				}
				_ = a.Snapshot()
			}
		}()
	}
	wg.Wait()

	s := a.Snapshot()
	assert.Equal(t, uint64(workers*perWorker), s.CommandsProcessed)
	assert.Equal(t, uint64(workers*perWorker*2), s.BytesSent)
	assert.Equal(t, uint64(workers*5), s.FilesTransferred)
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	a := newWithClock(func() time.Time { return now })

	now = start.Add(26*time.Hour + 3*time.Minute + 4*time.Second)
	s := a.Snapshot()

	assert.Equal(t, start, s.StartedAt)
	assert.Equal(t, "1d 2h 3m 4s", FormatUptime(s.Uptime))
}

func TestSnapshotLines(t *testing.T) {
	a := New()
	a.AddBytesSent(1234567)
	a.AddBytesReceived(999)

	lines := a.Snapshot().Lines()
	require.Len(t, lines, 8)
	assert.Equal(t, "Server Statistics:", lines[0])
	assert.Contains(t, lines, "  Bytes sent: 1,234,567")
	assert.Contains(t, lines, "  Bytes received: 999")
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0d 0h 0m 0s"},
		{-time.Second, "0d 0h 0m 0s"},
		{59 * time.Second, "0d 0h 0m 59s"},
		{time.Hour + 500*time.Millisecond, "0d 1h 0m 0s"},
		{49 * time.Hour, "2d 1h 0m 0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUptime(tt.in))
	}
}
