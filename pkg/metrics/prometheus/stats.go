package prometheus

import (
	"github.com/marmos91/distd/pkg/metrics"
	"github.com/marmos91/distd/pkg/stats"
	"github.com/prometheus/client_golang/prometheus"
)

// statsCollector exposes a stats.Aggregator snapshot at scrape time, so the
// Prometheus counters always agree with what STAT reports.
type statsCollector struct {
	snapshot func() stats.Snapshot

	connections   *prometheus.Desc
	commands      *prometheus.Desc
	files         *prometheus.Desc
	bytesSent     *prometheus.Desc
	bytesReceived *prometheus.Desc
	errors        *prometheus.Desc
	uptime        *prometheus.Desc
}

// RegisterStats registers a collector reading agg on every scrape.
// It is a no-op when metrics are disabled.
func RegisterStats(agg *stats.Aggregator) error {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}
	return reg.Register(newStatsCollector(agg.Snapshot))
}

func newStatsCollector(snapshot func() stats.Snapshot) *statsCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("distd_server_"+name, help, nil, nil)
	}
	return &statsCollector{
		snapshot:      snapshot,
		connections:   desc("connections_total", "Connections accepted since start"),
		commands:      desc("commands_processed_total", "Commands processed since start"),
		files:         desc("files_transferred_total", "Files transferred since start"),
		bytesSent:     desc("bytes_sent_total", "Bytes sent to clients since start"),
		bytesReceived: desc("bytes_received_total", "Bytes received from clients since start"),
		errors:        desc("errors_total", "Failed operations since start"),
		uptime:        desc("uptime_seconds", "Seconds since the server started"),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connections
	ch <- c.commands
	ch <- c.files
	ch <- c.bytesSent
	ch <- c.bytesReceived
	ch <- c.errors
	ch <- c.uptime
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(c.connections, s.Connections)
	counter(c.commands, s.CommandsProcessed)
	counter(c.files, s.FilesTransferred)
	counter(c.bytesSent, s.BytesSent)
	counter(c.bytesReceived, s.BytesReceived)
	counter(c.errors, s.Errors)
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, s.Uptime.Seconds())
}
