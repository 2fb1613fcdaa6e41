// Package gen provides the client for the generation service: the HTTP
// submit/poll/health endpoints and the websocket push-event stream.
package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultSubmitTimeout = 30 * time.Second

// Client talks to the generator HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// PollResult is one poll response for an anchor.
type PollResult struct {
	Success  bool   `json:"success"`
	Content  string `json:"content,omitempty"`
	Complete bool   `json:"complete,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewClient creates a generator API client.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		logger:  logger,
	}
}

type submitRequest struct {
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata"`
}

type submitResponse struct {
	Success bool   `json:"success"`
	Anchor  string `json:"anchor"`
	Error   string `json:"error"`
}

// Submit sends a framed message to the generator and returns the anchor
// issued for response monitoring.
func (c *Client) Submit(ctx context.Context, message string, metadata map[string]any) (string, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	body, err := json.Marshal(submitRequest{Message: message, Metadata: metadata})
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultSubmitTimeout)
	defer cancel()

	var resp submitResponse
	if err := c.postJSON(ctx, "/claude/inject", body, &resp); err != nil {
		return "", fmt.Errorf("submit message: %w", err)
	}
	if !resp.Success {
		return "", fmt.Errorf("submit rejected: %s", resp.Error)
	}
	if resp.Anchor == "" {
		return "", fmt.Errorf("submit accepted without anchor")
	}

	c.logger.Info("Message submitted to generator", "anchor", resp.Anchor, "message_len", len(message))
	return resp.Anchor, nil
}

type pollRequest struct {
	Anchor    string `json:"anchor"`
	TimeoutMs int64  `json:"timeout"`
}

// Poll requests the current response state for an anchor. The timeout bounds
// both the server-side wait and the HTTP call itself.
func (c *Client) Poll(ctx context.Context, anchor string, timeout time.Duration) (*PollResult, error) {
	body, err := json.Marshal(pollRequest{Anchor: anchor, TimeoutMs: timeout.Milliseconds()})
	if err != nil {
		return nil, fmt.Errorf("marshal poll request: %w", err)
	}

	// Give the HTTP layer slack beyond the server-side wait.
	ctx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	var result PollResult
	if err := c.postJSON(ctx, "/claude/monitor", body, &result); err != nil {
		return nil, fmt.Errorf("poll anchor %s: %w", anchor, err)
	}
	return &result, nil
}

// Initialize asks the generator API to re-establish its desktop connection.
// Used as the recovery action for the bridge-connection component.
func (c *Client) Initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/claude/initialize", nil)
	if err != nil {
		return fmt.Errorf("build initialize request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("initialize generator connection: %w", err)
	}
	defer drainAndClose(resp.Body, c.logger)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("initialize returned status %d", resp.StatusCode)
	}
	return nil
}

type healthResponse struct {
	Status string `json:"status"`
}

// Health reports whether the generator API is up and self-describes healthy.
func (c *Client) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer drainAndClose(resp.Body, c.logger)

	if resp.StatusCode != http.StatusOK {
		return false
	}
	var hr healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return false
	}
	return hr.Status == "healthy"
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body, c.logger)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func drainAndClose(body io.ReadCloser, logger *slog.Logger) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		logger.Debug("failed to drain response body", "error", err)
	}
	if err := body.Close(); err != nil {
		logger.Debug("failed to close response body", "error", err)
	}
}
