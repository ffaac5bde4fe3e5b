package server

import (
	"context"
	"time"

	"github.com/marmos91/distd/internal/logger"
)

// runIdleMonitor sweeps the registry every IdleSweep interval until ctx is
// cancelled or the server shuts down.
func (s *Server) runIdleMonitor(ctx context.Context) {
	ticker := time.NewTicker(s.config.Timeouts.IdleSweep)
	defer ticker.Stop()

	logger.Debug("Idle monitor started",
		"timeout", s.config.Timeouts.Idle, "interval", s.config.Timeouts.IdleSweep)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Shutdown:
			return
		case now := <-ticker.C:
			s.sweepIdle(now)
		}
	}
}

// sweepIdle evicts every connection idle for longer than the session
// timeout. Connections streaming a file are skipped. It returns the number
// of evicted connections.
func (s *Server) sweepIdle(now time.Time) int {
	evicted := 0
	for _, c := range s.registry.Snapshot() {
		idle := c.IdleFor(now)
		if !c.evictIfIdle(now, s.config.Timeouts.Idle) {
			continue
		}
		evicted++
		s.registry.Remove(c)
		if s.metrics != nil {
			s.metrics.RecordIdleEviction()
		}
		logger.Info("Idle connection evicted",
			logger.ConnID(c.id), logger.ClientAddr(c.addr),
			logger.KeyIdle, idle.Round(time.Second).String())
	}
	return evicted
}
