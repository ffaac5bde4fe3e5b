package handlers

import (
	"net/http"
)

// Source is the read-only view of the transfer server used by the
// handlers.
type Source interface {
	IsRunning() bool
	ActiveClients() int
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	src Source
}

// NewHealthHandler creates a health handler. src may be nil, in which case
// the readiness probe reports unhealthy.
func NewHealthHandler(src Source) *HealthHandler {
	return &HealthHandler{src: src}
}

// Liveness handles GET /healthz. It succeeds as long as the HTTP server
// responds.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "distd",
	}))
}

// Readiness handles GET /healthz/ready. It returns 503 until the transfer
// server is accepting connections.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.src == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("server not initialized"))
		return
	}
	if !h.src.IsRunning() {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("server not accepting connections"))
		return
	}
	writeJSON(w, http.StatusOK, healthyResponse(map[string]int{
		"active_clients": h.src.ActiveClients(),
	}))
}
