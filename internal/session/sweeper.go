package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is the expiry task run by the sweep worker.
type Sweeper interface {
	SweepExpired(now time.Time, ttl time.Duration) int
}

// SweepCallback is called after each sweep that removed sessions.
type SweepCallback func(removed int)

// StartSweeper runs a background goroutine that periodically removes
// sessions idle for longer than ttl. It stops when ctx is done.
func StartSweeper(ctx context.Context, task Sweeper, interval, ttl time.Duration, onSweep SweepCallback) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case now := <-ticker.C:
				RunSweep(task, now, ttl, onSweep)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// RunSweep performs one sweep pass.
func RunSweep(task Sweeper, now time.Time, ttl time.Duration, onSweep SweepCallback) int {
	removed := task.SweepExpired(now, ttl)
	if removed == 0 {
		return 0
	}
	slog.Info("Session sweeper removed expired sessions", "count", removed)
	if onSweep != nil {
		onSweep(removed)
	}
	return removed
}
