package mattermost

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendCreatesPost(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/posts" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Expected bearer auth, got %q", got)
		}
		var req struct {
			ChannelID string `json:"channel_id"`
			Message   string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		if req.ChannelID != "ch1" || req.Message != "hello" {
			t.Errorf("Unexpected payload: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "post-9"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-123", discardLogger())
	id, err := c.Send(context.Background(), "ch1", "hello")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if id != "post-9" {
		t.Errorf("Expected post-9, got %q", id)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	t.Parallel()

	var gotMethods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/posts/post-9" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		gotMethods = append(gotMethods, r.Method)
		json.NewEncoder(w).Encode(map[string]string{"id": "post-9"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", discardLogger())
	if err := c.Update(context.Background(), "post-9", "edited"); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if err := c.Delete(context.Background(), "post-9"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if len(gotMethods) != 2 || gotMethods[0] != http.MethodPut || gotMethods[1] != http.MethodDelete {
		t.Errorf("Expected [PUT DELETE], got %v", gotMethods)
	}
}

func TestPostsSinceOrdersOldestFirst(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/channels/ch1/posts" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("since"); got == "" {
			t.Error("Expected since parameter")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"order": []string{"p2", "p1"},
			"posts": map[string]any{
				"p1": map[string]any{"id": "p1", "channel_id": "ch1", "user_id": "u1", "message": "first", "create_at": 1000},
				"p2": map[string]any{"id": "p2", "channel_id": "ch1", "user_id": "u2", "message": "second", "create_at": 2000},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", discardLogger())
	posts, err := c.PostsSince(context.Background(), "ch1", time.UnixMilli(500))
	if err != nil {
		t.Fatalf("PostsSince returned error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("Expected 2 posts, got %d", len(posts))
	}
	if posts[0].ID != "p1" || posts[1].ID != "p2" {
		t.Errorf("Expected oldest-first ordering, got %s then %s", posts[0].ID, posts[1].ID)
	}
	if posts[0].Message != "first" || posts[0].UserID != "u1" {
		t.Errorf("Unexpected post mapping: %+v", posts[0])
	}
}

func TestUserInfo(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/users/u1" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "u1", "username": "alice"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", discardLogger())
	user, err := c.UserInfo(context.Background(), "u1")
	if err != nil {
		t.Fatalf("UserInfo returned error: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("Expected alice, got %q", user.Username)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "bot"})
	}))
	defer healthy.Close()

	c := NewClient(healthy.URL, "tok", discardLogger())
	if !c.Ping(context.Background()) {
		t.Error("Expected Ping true against healthy server")
	}

	down := NewClient("http://127.0.0.1:1", "tok", discardLogger())
	if down.Ping(context.Background()) {
		t.Error("Expected Ping false against unreachable server")
	}
}
