package realtime

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// SweepPresence drops presence entries whose connection is gone and tells
// every connection which retros changed.
func (s *Server) SweepPresence() int {
	evicted := s.presence.Prune(s.hub.Alive)
	for _, ev := range evicted {
		s.broadcastUsers(ev.RetroID, ev.Users, "")
	}
	presenceGauge.Set(float64(s.presence.Len()))
	connectionsGauge.Set(float64(s.hub.Len()))
	return len(evicted)
}

// Sweeper runs SweepPresence on a fixed interval until ctx is done.
type Sweeper struct {
	Server   *Server
	Interval time.Duration
	Logger   *log.Logger
}

func (w *Sweeper) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := w.Logger
	if logger == nil {
		logger = log.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := w.Server.SweepPresence(); n > 0 {
				logger.Info("swept orphaned presence", "entries", n)
			}
		}
	}
}
