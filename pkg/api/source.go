package api

import (
	"time"

	"github.com/marmos91/distd/pkg/api/handlers"
	"github.com/marmos91/distd/pkg/server"
	"github.com/marmos91/distd/pkg/stats"
)

// serverSource exposes a transfer server to the handlers.
type serverSource struct {
	srv *server.Server
}

// FromServer adapts srv for NewRouter and NewServer.
func FromServer(srv *server.Server) handlers.StatsSource {
	return serverSource{srv: srv}
}

func (s serverSource) IsRunning() bool {
	return s.srv.IsRunning()
}

func (s serverSource) ActiveClients() int {
	return s.srv.ActiveClients()
}

func (s serverSource) StatsSnapshot() stats.Snapshot {
	return s.srv.Stats().Snapshot()
}

func (s serverSource) Connections() []handlers.ConnectionInfo {
	now := time.Now()
	conns := s.srv.Registry().Snapshot()
	out := make([]handlers.ConnectionInfo, 0, len(conns))
	for _, c := range conns {
		out = append(out, handlers.ConnectionInfo{
			ID:            c.ID(),
			Addr:          c.Addr(),
			ConnectedAt:   c.ConnectedAt(),
			State:         c.State().String(),
			Transferring:  c.TransferInProgress(),
			IdleSeconds:   int64(c.IdleFor(now).Seconds()),
			Commands:      c.CommandCount(),
			BytesSent:     c.BytesSent(),
			BytesReceived: c.BytesReceived(),
		})
	}
	return out
}
