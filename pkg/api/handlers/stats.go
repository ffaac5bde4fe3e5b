package handlers

import (
	"net/http"
	"time"

	"github.com/marmos91/distd/pkg/stats"
)

// ConnectionInfo describes one live client session.
type ConnectionInfo struct {
	ID            string    `json:"id"`
	Addr          string    `json:"addr"`
	ConnectedAt   time.Time `json:"connected_at"`
	State         string    `json:"state"`
	Transferring  bool      `json:"transferring"`
	IdleSeconds   int64     `json:"idle_seconds"`
	Commands      int       `json:"commands"`
	BytesSent     int64     `json:"bytes_sent"`
	BytesReceived int64     `json:"bytes_received"`
}

// StatsSource extends Source with counters and the session list.
type StatsSource interface {
	Source
	StatsSnapshot() stats.Snapshot
	Connections() []ConnectionInfo
}

// StatsPayload is the body of GET /stats.
type StatsPayload struct {
	stats.Snapshot
	Uptime        string `json:"uptime"`
	ActiveClients int    `json:"active_clients"`
}

// StatsHandler serves the server statistics.
type StatsHandler struct {
	src StatsSource
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(src StatsSource) *StatsHandler {
	return &StatsHandler{src: src}
}

// Stats handles GET /stats.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.src == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("server not initialized"))
		return
	}
	snap := h.src.StatsSnapshot()
	writeJSON(w, http.StatusOK, okResponse(StatsPayload{
		Snapshot:      snap,
		Uptime:        stats.FormatUptime(snap.Uptime),
		ActiveClients: h.src.ActiveClients(),
	}))
}

// Connections handles GET /connections.
func (h *StatsHandler) Connections(w http.ResponseWriter, r *http.Request) {
	if h.src == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("server not initialized"))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(h.src.Connections()))
}
