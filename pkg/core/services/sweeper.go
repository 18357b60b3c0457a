package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type expiredDeactivator interface {
	DeactivateExpired(ctx context.Context) (int64, error)
}

// ExpirySweeper periodically deactivates expired links so they drop out of
// owner listings without waiting for a resolve attempt.
type ExpirySweeper struct {
	links    expiredDeactivator
	interval time.Duration
}

func NewExpirySweeper(links expiredDeactivator, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{links: links, interval: interval}
}

// Run sweeps every interval until ctx is cancelled. A failed sweep is logged and retried on the next tick.
func (s *ExpirySweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep and returns the number of deactivated links.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) int64 {
	n, err := s.links.DeactivateExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("expiry sweep failed")
		return 0
	}
	if n > 0 {
		log.Info().Int64("deactivated", n).Msg("expiry sweep finished")
	}
	return n
}
