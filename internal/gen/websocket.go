package gen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// WebSocketSource dials the generator's push-event endpoint.
type WebSocketSource struct {
	url    string
	logger *slog.Logger
}

var _ Source = (*WebSocketSource)(nil)

// NewWebSocketSource creates a push-event source for the given ws:// URL.
func NewWebSocketSource(url string, logger *slog.Logger) *WebSocketSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketSource{url: url, logger: logger}
}

// Subscribe dials the endpoint and starts a read loop. The returned
// subscription's event channel closes when the connection drops or Close is
// called.
func (s *WebSocketSource) Subscribe(ctx context.Context) (Subscription, error) {
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial push endpoint: %w", err)
	}

	sub := &wsSubscription{
		conn:   conn,
		events: make(chan Event, 16),
		logger: s.logger,
	}
	go sub.readLoop(ctx)
	return sub, nil
}

type wsSubscription struct {
	conn   *websocket.Conn
	events chan Event
	logger *slog.Logger

	closeOnce sync.Once
}

func (s *wsSubscription) Events() <-chan Event {
	return s.events
}

// Close tears down the connection. The read loop notices the closed
// connection and closes the event channel.
func (s *wsSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close(websocket.StatusNormalClosure, "subscription closed")
	})
	return err
}

func (s *wsSubscription) readLoop(ctx context.Context) {
	defer close(s.events)
	defer func() {
		_ = s.conn.Close(websocket.StatusNormalClosure, "read loop exited")
	}()

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				s.logger.Debug("[PUSH] Read failed", "error", err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			s.logger.Warn("[PUSH] Dropping malformed event", "error", err)
			continue
		}

		select {
		case s.events <- event:
		case <-ctx.Done():
			return
		}
	}
}
