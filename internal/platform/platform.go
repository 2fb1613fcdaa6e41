// Package platform defines the chat-platform capability set the bridge
// depends on. Concrete platforms implement these; the pipeline never
// touches a platform client directly.
package platform

import (
	"context"
	"time"

	"github.com/deskbridge/deskbridge/internal/domain"
)

// Messenger posts, edits, and removes messages. All operations may fail
// independently; callers treat failures as non-fatal.
type Messenger interface {
	Send(ctx context.Context, channelID, text string) (string, error)
	Update(ctx context.Context, messageID, text string) error
	Delete(ctx context.Context, messageID string) error
}

// Inbox reads incoming posts.
type Inbox interface {
	Channels(ctx context.Context, teamID string) ([]domain.Channel, error)
	PostsSince(ctx context.Context, channelID string, since time.Time) ([]domain.Post, error)
	UserInfo(ctx context.Context, userID string) (domain.User, error)
}
