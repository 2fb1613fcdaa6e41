package store

import (
	"context"
	"log/slog"
	"time"
)

const retentionSweepInterval = 1 * time.Hour

// StartRetentionWorker runs a background goroutine that periodically deletes
// processed-post rows older than the retention window. The seen cache bounds
// in-memory growth; this bounds the durable side.
func StartRetentionWorker(ctx context.Context, repo Repository, retention time.Duration) {
	ticker := time.NewTicker(retentionSweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", retentionSweepInterval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, repo, retention)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(ctx context.Context, repo Repository, retention time.Duration) {
	deleted, err := repo.CleanupProcessedPosts(ctx, time.Now().Add(-retention))
	if err != nil {
		slog.Error("Retention worker failed to cleanup processed posts", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Retention worker cleaned up processed posts", "count", deleted)
	}
}
