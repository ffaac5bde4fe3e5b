package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marmos91/distd/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	running bool
	active  int
	snap    stats.Snapshot
	conns   []ConnectionInfo
}

func (f *fakeSource) IsRunning() bool { return f.running }
func (f *fakeSource) ActiveClients() int { return f.active }
func (f *fakeSource) StatsSnapshot() stats.Snapshot { return f.snap }
func (f *fakeSource) Connections() []ConnectionInfo { return f.conns }

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestLiveness(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler(nil).Liveness(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, map[string]any{"service": "distd"}, resp.Data)
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		src        Source
		wantStatus int
		wantError  string
	}{
		{"no source", nil, http.StatusServiceUnavailable, "server not initialized"},
		{"stopped", &fakeSource{}, http.StatusServiceUnavailable, "server not accepting connections"},
		{"running", &fakeSource{running: true, active: 3}, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandler(tt.src).Readiness(w, httptest.NewRequest(http.MethodGet, "/healthz/ready", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decode(t, w)
			assert.Equal(t, tt.wantError, resp.Error)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, map[string]any{"active_clients": float64(3)}, resp.Data)
			}
		})
	}
}

func TestStats(t *testing.T) {
	src := &fakeSource{
		running: true,
		active:  2,
		snap: stats.Snapshot{
			Uptime:           90 * time.Second,
			Connections:      5,
			FilesTransferred: 4,
			BytesSent:        1024,
		},
	}
	w := httptest.NewRecorder()
	NewStatsHandler(src).Stats(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(5), data["connections"])
	assert.Equal(t, float64(4), data["files_transferred"])
	assert.Equal(t, float64(1024), data["bytes_sent"])
	assert.Equal(t, float64(2), data["active_clients"])
	assert.Equal(t, "0d 0h 1m 30s", data["uptime"])
}

func TestConnections(t *testing.T) {
	src := &fakeSource{conns: []ConnectionInfo{{ID: "abc", Addr: "127.0.0.1:5000", State: "awaiting_command"}}}
	w := httptest.NewRecorder()
	NewStatsHandler(src).Connections(w, httptest.NewRequest(http.MethodGet, "/connections", nil))

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	list, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, "127.0.0.1:5000", list[0].(map[string]any)["addr"])
}

func TestStatsWithoutSource(t *testing.T) {
	w := httptest.NewRecorder()
	NewStatsHandler(nil).Stats(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
