// Package mattermost implements the platform capability set over the
// Mattermost REST v4 API.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/deskbridge/deskbridge/internal/domain"
	"github.com/deskbridge/deskbridge/internal/platform"
)

const requestTimeout = 10 * time.Second

// Client talks to one Mattermost instance as the bot user.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

var (
	_ platform.Messenger = (*Client)(nil)
	_ platform.Inbox     = (*Client)(nil)
)

// NewClient creates a Mattermost REST client with bearer-token auth.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{},
		logger:  logger,
	}
}

type postPayload struct {
	ID        string `json:"id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	Message   string `json:"message"`
	CreateAt  int64  `json:"create_at,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// Send creates a post in a channel and returns its ID.
func (c *Client) Send(ctx context.Context, channelID, text string) (string, error) {
	var created postPayload
	err := c.do(ctx, http.MethodPost, "/api/v4/posts",
		postPayload{ChannelID: channelID, Message: text}, &created)
	if err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	return created.ID, nil
}

// Update replaces a post's message.
func (c *Client) Update(ctx context.Context, messageID, text string) error {
	err := c.do(ctx, http.MethodPut, "/api/v4/posts/"+messageID,
		postPayload{ID: messageID, Message: text}, nil)
	if err != nil {
		return fmt.Errorf("update post %s: %w", messageID, err)
	}
	return nil
}

// Delete removes a post.
func (c *Client) Delete(ctx context.Context, messageID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/v4/posts/"+messageID, nil, nil); err != nil {
		return fmt.Errorf("delete post %s: %w", messageID, err)
	}
	return nil
}

type channelPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Channels lists the channels the bot belongs to in a team.
func (c *Client) Channels(ctx context.Context, teamID string) ([]domain.Channel, error) {
	var payload []channelPayload
	path := "/api/v4/users/me/teams/" + teamID + "/channels"
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	channels := make([]domain.Channel, 0, len(payload))
	for _, ch := range payload {
		channels = append(channels, domain.Channel{ID: ch.ID, Name: ch.Name})
	}
	return channels, nil
}

type postListPayload struct {
	Order []string               `json:"order"`
	Posts map[string]postPayload `json:"posts"`
}

// PostsSince returns a channel's posts created after the given time, oldest
// first.
func (c *Client) PostsSince(ctx context.Context, channelID string, since time.Time) ([]domain.Post, error) {
	path := "/api/v4/channels/" + channelID + "/posts?since=" +
		strconv.FormatInt(since.UnixMilli(), 10)

	var payload postListPayload
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	posts := make([]domain.Post, 0, len(payload.Order))
	for _, id := range payload.Order {
		p, ok := payload.Posts[id]
		if !ok {
			continue
		}
		posts = append(posts, domain.Post{
			ID:        p.ID,
			ChannelID: p.ChannelID,
			UserID:    p.UserID,
			Message:   p.Message,
			CreatedAt: time.UnixMilli(p.CreateAt),
		})
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.Before(posts[j].CreatedAt) })
	return posts, nil
}

type userPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// UserInfo resolves a user ID to its profile.
func (c *Client) UserInfo(ctx context.Context, userID string) (domain.User, error) {
	var payload userPayload
	if err := c.do(ctx, http.MethodGet, "/api/v4/users/"+url.PathEscape(userID), nil, &payload); err != nil {
		return domain.User{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	return domain.User{ID: payload.ID, Username: payload.Username}, nil
}

// Ping verifies API reachability, used as the platform health probe.
func (c *Client) Ping(ctx context.Context) bool {
	err := c.do(ctx, http.MethodGet, "/api/v4/users/me", nil, nil)
	return err == nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
