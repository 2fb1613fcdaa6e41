// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	AdminPort    string
	DBPath       string
	GeneratorURL string
	// GeneratorWSURL is the websocket endpoint for push events. Empty means
	// "derive from GeneratorURL" (http -> ws).
	GeneratorWSURL string

	Mattermost MattermostConfig
	Monitor    MonitorConfig
	Organizer  OrganizerConfig
	Health     HealthConfig
	Seen       SeenConfig
}

// MattermostConfig holds platform credentials and polling cadence.
type MattermostConfig struct {
	URL             string
	BotToken        string
	BotUserID       string
	TeamID          string
	MentionPatterns []string
	PollInterval    time.Duration
}

// MonitorConfig bounds one response-delivery session.
type MonitorConfig struct {
	Timeout      time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// OrganizerConfig controls paragraph finalization.
type OrganizerConfig struct {
	MaxParagraphLength int
}

// HealthConfig controls the health-check loop and recovery gating.
type HealthConfig struct {
	CheckInterval time.Duration
	CheckTimeout  time.Duration
	MaxAttempts   int
	// ManualOnly lists components that must never be auto-recovered.
	ManualOnly         []string
	GeneratorContainer string
	DebugPortAddr      string
}

// SeenConfig bounds the processed-post cache.
type SeenConfig struct {
	MaxEntries int
	TTL        time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		AdminPort:      getEnv("ADMIN_PORT", "8080"),
		DBPath:         getEnv("DB_PATH", "./data/bridge.db"),
		GeneratorURL:   getEnv("GENERATOR_API_URL", "http://localhost:3000"),
		GeneratorWSURL: getEnv("GENERATOR_WS_URL", ""),
		Mattermost: MattermostConfig{
			URL:             getEnv("MATTERMOST_URL", ""),
			BotToken:        getEnv("MATTERMOST_BOT_TOKEN", ""),
			BotUserID:       getEnv("MATTERMOST_BOT_USER_ID", ""),
			TeamID:          getEnv("MATTERMOST_TEAM_ID", ""),
			MentionPatterns: getEnvList("MATTERMOST_MENTION_PATTERNS", []string{"@bridge"}),
			PollInterval:    getEnvDuration("MATTERMOST_POLL_INTERVAL", 2*time.Second),
		},
		Monitor: MonitorConfig{
			Timeout:      getEnvDuration("MONITOR_TIMEOUT", 180*time.Second),
			PollInterval: getEnvDuration("MONITOR_POLL_INTERVAL", 3*time.Second),
			PollTimeout:  getEnvDuration("MONITOR_POLL_TIMEOUT", 5*time.Second),
		},
		Organizer: OrganizerConfig{
			MaxParagraphLength: getEnvInt("MAX_PARAGRAPH_LENGTH", 15000),
		},
		Health: HealthConfig{
			CheckInterval:      getEnvDuration("HEALTH_CHECK_INTERVAL", 30*time.Second),
			CheckTimeout:       getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
			MaxAttempts:        getEnvInt("MAX_RECOVERY_ATTEMPTS", 3),
			ManualOnly:         getEnvList("RECOVERY_MANUAL_ONLY", []string{"generator"}),
			GeneratorContainer: getEnv("GENERATOR_CONTAINER", "generator"),
			DebugPortAddr:      getEnv("GENERATOR_DEBUG_ADDR", "localhost:9223"),
		},
		Seen: SeenConfig{
			MaxEntries: getEnvInt("SEEN_CACHE_MAX", 1000),
			TTL:        getEnvDuration("SEEN_CACHE_TTL", 24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.AdminPort == "" {
		return fmt.Errorf("ADMIN_PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.GeneratorURL == "" {
		return fmt.Errorf("GENERATOR_API_URL cannot be empty")
	}
	if c.Mattermost.URL != "" {
		if c.Mattermost.BotToken == "" {
			return fmt.Errorf("MATTERMOST_BOT_TOKEN cannot be empty when MATTERMOST_URL is set")
		}
		if c.Mattermost.BotUserID == "" {
			return fmt.Errorf("MATTERMOST_BOT_USER_ID cannot be empty when MATTERMOST_URL is set")
		}
		if c.Mattermost.TeamID == "" {
			return fmt.Errorf("MATTERMOST_TEAM_ID cannot be empty when MATTERMOST_URL is set")
		}
	}
	if c.Monitor.Timeout <= 0 {
		return fmt.Errorf("MONITOR_TIMEOUT must be > 0")
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("MONITOR_POLL_INTERVAL must be > 0")
	}
	if c.Organizer.MaxParagraphLength <= 0 {
		return fmt.Errorf("MAX_PARAGRAPH_LENGTH must be > 0")
	}
	if c.Seen.MaxEntries <= 0 {
		return fmt.Errorf("SEEN_CACHE_MAX must be > 0")
	}
	return nil
}

// WebSocketURL returns the push-event endpoint, deriving it from the HTTP
// base URL when not configured explicitly.
func (c *Config) WebSocketURL() string {
	if c.GeneratorWSURL != "" {
		return c.GeneratorWSURL
	}
	url := c.GeneratorURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + "/events"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
