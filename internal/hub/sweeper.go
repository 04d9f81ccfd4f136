package hub

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sheetsync/internal/presence"
)

// Sweeper periodically evicts idle presence entries. It runs on its own
// ticker, independent of event traffic.
type Sweeper struct {
	hub      *Hub
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

func NewSweeper(h *Hub, interval, timeout time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = presence.DefaultSweepInterval
	}
	if timeout <= 0 {
		timeout = presence.DefaultIdleTimeout
	}
	return &Sweeper{hub: h, interval: interval, timeout: timeout, log: log}
}

func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.hub.Sweep(ctx, s.timeout); err != nil {
				s.log.Debug().Err(err).Msg("sweeper: stopped")
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}
