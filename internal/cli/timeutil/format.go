// Package timeutil provides time and throughput formatting for CLI output.
package timeutil

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// LocalTimeFormat is the format used for displaying local times in CLI output.
const LocalTimeFormat = "2006-01-02 15:04:05"

// FormatTime renders t in local time, or "-" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(LocalTimeFormat)
}

// FormatAge renders t relative to now, e.g. "3 minutes ago".
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// FormatElapsed renders a transfer duration with two decimals, e.g. "1.25s".
func FormatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// FormatRate renders a throughput such as "12 MiB/s". Durations too short to
// measure report the total as the rate.
func FormatRate(n int64, d time.Duration) string {
	if n <= 0 {
		return "0 B/s"
	}
	secs := d.Seconds()
	if secs < 0.001 {
		secs = 0.001
	}
	return humanize.IBytes(uint64(float64(n)/secs)) + "/s"
}
