package gen

import "context"

// Event kinds pushed by the generator over the websocket.
const (
	EventResponseUpdate    = "response_update"
	EventResponseComplete  = "response_complete"
	EventResponseStreaming = "response_streaming"
	EventResponseMonitored = "response_monitored"
)

// Event is one push notification about an anchor's response state.
type Event struct {
	Kind     string `json:"type"`
	Anchor   string `json:"anchor"`
	Content  string `json:"content"`
	Complete bool   `json:"complete"`
}

// Subscription is a live push-event stream. Events closes when the
// subscription ends, whether by Close or by transport failure.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Source opens push subscriptions. The monitor treats a Subscribe failure as
// non-fatal and continues on polling alone.
type Source interface {
	Subscribe(ctx context.Context) (Subscription, error)
}
