// Package store persists session outcomes and processed-post IDs.
package store

import (
	"context"
	"time"

	"github.com/deskbridge/deskbridge/internal/domain"
)

// Repository defines the persistence operations the bridge needs.
type Repository interface {
	// SaveSession archives one finished response-delivery session.
	SaveSession(ctx context.Context, rec domain.SessionRecord) error

	// RecentSessions returns the most recently finished sessions, newest first.
	RecentSessions(ctx context.Context, limit int) ([]domain.SessionRecord, error)

	// MarkPostProcessed durably records a handled post ID.
	MarkPostProcessed(ctx context.Context, postID string, processedAt time.Time) error

	// LoadProcessedPosts returns post IDs processed after the cutoff, used to
	// warm the seen cache across restarts.
	LoadProcessedPosts(ctx context.Context, since time.Time) ([]string, error)

	// CleanupProcessedPosts deletes processed-post rows older than the cutoff.
	CleanupProcessedPosts(ctx context.Context, before time.Time) (int64, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
