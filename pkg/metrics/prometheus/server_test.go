package prometheus

import (
	"testing"
	"time"

	"github.com/marmos91/distd/pkg/metrics"
	"github.com/marmos91/distd/pkg/stats"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gather flattens the registry into "name{label=value,...}" -> value.
func gather(t *testing.T, reg *promclient.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			key := f.GetName()
			for _, lp := range m.GetLabel() {
				key += "," + lp.GetName() + "=" + lp.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestNewServerMetricsDisabled(t *testing.T) {
	metrics.Reset()
	assert.Nil(t, NewServerMetrics())
	assert.NoError(t, RegisterStats(stats.New()))
}

func TestServerMetricsRecords(t *testing.T) {
	reg := metrics.InitRegistry()
	defer metrics.Reset()

	m := NewServerMetrics()
	require.NotNil(t, m)

	m.RecordCommand("LIST", 200, 2*time.Millisecond)
	m.RecordCommand("LIST", 200, time.Millisecond)
	m.RecordCommand("GET", 550, time.Millisecond)

	m.RecordTransferStart(metrics.DirectionUpload)
	m.RecordTransferStart(metrics.DirectionDownload)
	m.RecordTransferEnd(metrics.DirectionUpload, metrics.OutcomeSuccess, 5, time.Second)

	m.RecordConnectionAccepted()
	m.SetActiveConnections(3)
	m.RecordIdleEviction()

	v := gather(t, reg)
	assert.Equal(t, 2.0, v["distd_commands_total,code=200,verb=LIST"])
	assert.Equal(t, 1.0, v["distd_commands_total,code=550,verb=GET"])
	assert.Equal(t, 0.0, v["distd_transfers_in_flight,direction=upload"])
	assert.Equal(t, 1.0, v["distd_transfers_in_flight,direction=download"])
	assert.Equal(t, 1.0, v["distd_transfers_total,direction=upload,outcome=success"])
	assert.Equal(t, 1.0, v["distd_transfer_bytes,direction=upload"])
	assert.Equal(t, 1.0, v["distd_connections_accepted_total"])
	assert.Equal(t, 3.0, v["distd_active_connections"])
	assert.Equal(t, 1.0, v["distd_idle_evictions_total"])
}

func TestStatsCollector(t *testing.T) {
	reg := metrics.InitRegistry()
	defer metrics.Reset()

	agg := stats.New()
	agg.FileTransferred()
	agg.FileTransferred()
	agg.AddBytesSent(100)
	require.NoError(t, RegisterStats(agg))

	v := gather(t, reg)
	assert.Equal(t, 2.0, v["distd_server_files_transferred_total"])
	assert.Equal(t, 100.0, v["distd_server_bytes_sent_total"])
	assert.Contains(t, v, "distd_server_uptime_seconds")

	agg.Error()
	v = gather(t, reg)
	assert.Equal(t, 1.0, v["distd_server_errors_total"])
}
