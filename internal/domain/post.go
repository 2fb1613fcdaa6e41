// Package domain contains shared value types for the bridge.
package domain

import "time"

// Post is a chat message observed on the platform.
type Post struct {
	ID        string
	ChannelID string
	UserID    string
	Message   string
	CreatedAt time.Time
}

// User identifies the author of a post.
type User struct {
	ID       string
	Username string
}

// Channel identifies a chat channel the bot can see.
type Channel struct {
	ID   string
	Name string
}
