package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"clip-orchestrator/service"
)

// runScheduler triggers a dispatch tick every interval until ctx is done. The dispatcher
// itself refuses overlapping ticks, so a slow tick only delays the next one.
func runScheduler(ctx context.Context, dispatcher service.Dispatcher, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	zerolog.Ctx(ctx).Info().Dur("interval", interval).Msg("dispatch scheduler started")
	for {
		select {
		case <-ctx.Done():
			zerolog.Ctx(ctx).Info().Msg("dispatch scheduler stopped")
			return
		case <-ticker.C:
			if _, err := dispatcher.Dispatch(ctx); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("dispatch tick failed")
			}
		}
	}
}
