package monitor

import (
	"context"
	"log/slog"
	"sync"
)

// timeline is the per-session content state shared between the push handler
// and the poll loop. All observation handling runs under one mutex so that
// "forward if different from last forwarded" is evaluated atomically.
type timeline struct {
	mu            sync.Mutex
	lastForwarded string
	forwarded     bool
	complete      bool
	done          chan struct{}
}

func newTimeline() *timeline {
	return &timeline{done: make(chan struct{})}
}

// apply records one content observation. Content that differs from the last
// forwarded value is delivered to the sink inside the critical section; a
// repeated observation from the other channel is dropped. markComplete ends
// the session.
func (t *timeline) apply(ctx context.Context, sink Sink, content string, markComplete bool, logger *slog.Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.complete {
		return
	}

	if content != "" && content != t.lastForwarded {
		if err := sink.Deliver(ctx, content, markComplete); err != nil {
			logger.Warn("[MONITOR] Sink delivery failed", "error", err)
		}
		t.lastForwarded = content
		t.forwarded = true
	}

	if markComplete {
		t.complete = true
		close(t.done)
	}
}

// seal marks the timeline complete without applying content, blocking any
// late observations. It reports whether content was ever forwarded.
func (t *timeline) seal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.complete {
		t.complete = true
		close(t.done)
	}
	return t.forwarded
}

func (t *timeline) hasForwarded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.forwarded
}
