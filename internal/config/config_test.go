package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Monitor.Timeout != 180*time.Second {
		t.Errorf("Expected default monitor timeout 180s, got %s", cfg.Monitor.Timeout)
	}
	if cfg.Monitor.PollInterval != 3*time.Second {
		t.Errorf("Expected default poll interval 3s, got %s", cfg.Monitor.PollInterval)
	}
	if cfg.Health.MaxAttempts != 3 {
		t.Errorf("Expected default max attempts 3, got %d", cfg.Health.MaxAttempts)
	}
	if len(cfg.Health.ManualOnly) != 1 || cfg.Health.ManualOnly[0] != "generator" {
		t.Errorf("Expected generator manual-only by default, got %v", cfg.Health.ManualOnly)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MONITOR_TIMEOUT", "90s")
	t.Setenv("SEEN_CACHE_MAX", "50")
	t.Setenv("MATTERMOST_MENTION_PATTERNS", "@bot, @helper")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Monitor.Timeout != 90*time.Second {
		t.Errorf("Expected 90s timeout, got %s", cfg.Monitor.Timeout)
	}
	if cfg.Seen.MaxEntries != 50 {
		t.Errorf("Expected seen cache max 50, got %d", cfg.Seen.MaxEntries)
	}
	if len(cfg.Mattermost.MentionPatterns) != 2 || cfg.Mattermost.MentionPatterns[1] != "@helper" {
		t.Errorf("Expected parsed mention patterns, got %v", cfg.Mattermost.MentionPatterns)
	}
}

func TestValidateRequiresPlatformCredentials(t *testing.T) {
	t.Setenv("MATTERMOST_URL", "https://chat.example.com")
	t.Setenv("MATTERMOST_BOT_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatal("Expected validation error when platform URL set without token")
	}
}

func TestWebSocketURLDerivation(t *testing.T) {
	cases := []struct {
		base, ws, want string
	}{
		{base: "http://localhost:3000", want: "ws://localhost:3000/events"},
		{base: "https://gen.example.com", want: "wss://gen.example.com/events"},
		{base: "http://x", ws: "ws://custom:9/events", want: "ws://custom:9/events"},
	}
	for _, tc := range cases {
		cfg := &Config{GeneratorURL: tc.base, GeneratorWSURL: tc.ws}
		if got := cfg.WebSocketURL(); got != tc.want {
			t.Errorf("WebSocketURL(%q, %q) = %q, want %q", tc.base, tc.ws, got, tc.want)
		}
	}
}
