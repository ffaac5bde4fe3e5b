package prometheus

import (
	"strconv"
	"time"

	"github.com/marmos91/distd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics is the Prometheus implementation of metrics.ServerMetrics.
type serverMetrics struct {
	commands          *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	transfers         *prometheus.CounterVec
	transfersInFlight *prometheus.GaugeVec
	transferBytes     *prometheus.HistogramVec
	transferDuration  *prometheus.HistogramVec
	idleEvictions     prometheus.Counter
	activeConnections prometheus.Gauge
	connsAccepted     prometheus.Counter
	connsClosed       prometheus.Counter
	connsForceClosed  prometheus.Counter
}

// NewServerMetrics creates a new Prometheus-backed ServerMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewServerMetrics() metrics.ServerMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &serverMetrics{
		commands: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "distd_commands_total",
				Help: "Total number of commands processed by verb and reply code",
			},
			[]string{"verb", "code"},
		),
		commandDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distd_command_duration_milliseconds",
				Help:    "Duration of command handling in milliseconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 10000, 60000},
			},
			[]string{"verb"},
		),
		transfers: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "distd_transfers_total",
				Help: "Total number of file transfers by direction and outcome",
			},
			[]string{"direction", "outcome"},
		),
		transfersInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "distd_transfers_in_flight",
				Help: "Number of transfers currently streaming",
			},
			[]string{"direction"},
		),
		transferBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "distd_transfer_bytes",
				Help: "Distribution of payload bytes per transfer",
				Buckets: []float64{
					1024,       // 1KB
					65536,      // 64KB
					1048576,    // 1MB
					16777216,   // 16MB
					134217728,  // 128MB
					1073741824, // 1GB
				},
			},
			[]string{"direction"},
		),
		transferDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distd_transfer_duration_seconds",
				Help:    "Duration of file transfers in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 9),
			},
			[]string{"direction"},
		),
		idleEvictions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "distd_idle_evictions_total",
			Help: "Connections closed by the idle monitor",
		}),
		activeConnections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "distd_active_connections",
			Help: "Current number of client connections",
		}),
		connsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "distd_connections_accepted_total",
			Help: "Total number of accepted connections",
		}),
		connsClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "distd_connections_closed_total",
			Help: "Total number of closed connections",
		}),
		connsForceClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "distd_connections_force_closed_total",
			Help: "Connections force-closed after the shutdown timeout",
		}),
	}
}

func (m *serverMetrics) RecordCommand(verb string, code int, duration time.Duration) {
	m.commands.WithLabelValues(verb, strconv.Itoa(code)).Inc()
	m.commandDuration.WithLabelValues(verb).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *serverMetrics) RecordTransferStart(direction string) {
	m.transfersInFlight.WithLabelValues(direction).Inc()
}

func (m *serverMetrics) RecordTransferEnd(direction, outcome string, bytes int64, duration time.Duration) {
	m.transfersInFlight.WithLabelValues(direction).Dec()
	m.transfers.WithLabelValues(direction, outcome).Inc()
	if outcome == metrics.OutcomeSuccess {
		m.transferBytes.WithLabelValues(direction).Observe(float64(bytes))
		m.transferDuration.WithLabelValues(direction).Observe(duration.Seconds())
	}
}

func (m *serverMetrics) RecordIdleEviction() {
	m.idleEvictions.Inc()
}

func (m *serverMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *serverMetrics) RecordConnectionAccepted() {
	m.connsAccepted.Inc()
}

func (m *serverMetrics) RecordConnectionClosed() {
	m.connsClosed.Inc()
}

func (m *serverMetrics) RecordConnectionForceClosed() {
	m.connsForceClosed.Inc()
}
