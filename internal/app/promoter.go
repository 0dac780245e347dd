package app

import (
	"context"
	"log/slog"
	"time"
)

// PromoteOnce fires due repeating jobs and releases due delayed jobs in every queue.
func (a *App) PromoteOnce(ctx context.Context) (int, error) {
	return a.registry.PromoteDue(ctx, time.Now())
}

// promoteLoop calls PromoteOnce every interval until ctx is done. Errors are logged
// and the loop keeps going; the next tick retries.
func (a *App) promoteLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.PromoteOnce(ctx); err != nil && ctx.Err() == nil {
				a.logger.WarnContext(ctx, "promoting due jobs failed", slog.Any("error", err))
			}
		}
	}
}
