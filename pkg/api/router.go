package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/distd/internal/logger"
	"github.com/marmos91/distd/pkg/api/handlers"
	"github.com/marmos91/distd/pkg/metrics"
)

// NewRouter creates the chi router of the observability endpoint.
//
// Routes:
//   - GET /metrics - Prometheus exposition (404 when metrics are disabled)
//   - GET /healthz - Liveness probe
//   - GET /healthz/ready - Readiness probe
//   - GET /stats - Server statistics as JSON
//   - GET /connections - Live client sessions as JSON
func NewRouter(src handlers.StatsSource) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	var source handlers.Source
	if src != nil {
		source = src
	}
	healthHandler := handlers.NewHealthHandler(source)
	statsHandler := handlers.NewStatsHandler(src)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/healthz", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Get("/stats", statsHandler.Stats)
	r.Get("/connections", statsHandler.Connections)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/healthz", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs each request with the internal logger. Scrapes and
// probes are frequent, so completion is logged at DEBUG.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debug("HTTP request completed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, logger.Duration(start),
		)
	})
}
