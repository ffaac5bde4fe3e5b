package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", FormatTime(time.Time{}))

	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local)
	assert.Equal(t, "2026-03-04 05:06:07", FormatTime(ts))
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "-", FormatAge(time.Time{}))
	assert.Equal(t, "3 minutes ago", FormatAge(time.Now().Add(-3*time.Minute-time.Second)))
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "1.25s", FormatElapsed(1250*time.Millisecond))
	assert.Equal(t, "0.00s", FormatElapsed(0))
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		name string
		n    int64
		d    time.Duration
		want string
	}{
		{"nothing moved", 0, time.Second, "0 B/s"},
		{"one MiB per second", 1 << 20, time.Second, "1.0 MiB/s"},
		{"half second", 1 << 20, 500 * time.Millisecond, "2.0 MiB/s"},
		{"instant", 512, 0, "500 KiB/s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRate(tt.n, tt.d))
		})
	}
}
