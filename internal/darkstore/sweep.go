package darkstore

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/rider"
)

// SweepRiders periodically drops riders with no assignment or location
// update within ttl. It blocks until the context is cancelled.
func SweepRiders(ctx context.Context, roster *rider.Roster, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := roster.PruneBefore(now.Add(-ttl)); n > 0 {
				log.Debug().Int("riders", n).Msg("pruned stale riders")
			}
		}
	}
}
