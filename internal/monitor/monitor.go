// Package monitor merges the generator's push and poll channels into one
// deduplicated content stream per session.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/deskbridge/deskbridge/internal/config"
	"github.com/deskbridge/deskbridge/internal/domain"
	"github.com/deskbridge/deskbridge/internal/gen"
)

// ErrNoContent marks a session that ended without forwarding any content.
// The sink has already received the user-facing failure marker when Run
// returns this.
var ErrNoContent = errors.New("session ended with no content")

// Failure markers delivered through the sink in place of content.
const (
	markerNoContent      = "❌ No response received from the generator"
	markerTimeoutNoReply = "❌ Response timeout - no content received"
)

// Sink receives deduplicated content increments for one session. final is
// set when the increment carries a completion signal or a failure marker.
type Sink interface {
	Deliver(ctx context.Context, content string, final bool) error
}

// Poller is the request/response channel for an anchor's current state.
type Poller interface {
	Poll(ctx context.Context, anchor string, timeout time.Duration) (*gen.PollResult, error)
}

// Monitor runs response-delivery sessions.
type Monitor struct {
	source gen.Source
	poller Poller
	cfg    config.MonitorConfig
	logger *slog.Logger
}

// New creates a Monitor over the given push source and poll endpoint.
func New(source gen.Source, poller Poller, cfg config.MonitorConfig, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		source: source,
		poller: poller,
		cfg:    cfg,
		logger: logger,
	}
}

// Run monitors one anchor until completion, timeout, or cancellation,
// forwarding deduplicated increments to the sink. A failed push subscribe
// degrades the session to polling only. The push subscription is released
// on every exit path.
func (m *Monitor) Run(ctx context.Context, anchor string, sink Sink) (domain.SessionOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	tl := newTimeline()

	var events <-chan gen.Event
	sub, err := m.source.Subscribe(ctx)
	if err != nil {
		m.logger.Warn("[MONITOR] Push subscribe failed, continuing on polling only",
			"anchor", anchor, "error", err)
	} else {
		events = sub.Events()
		defer func() {
			if closeErr := sub.Close(); closeErr != nil {
				m.logger.Warn("[MONITOR] Push disconnect failed", "anchor", anchor, "error", closeErr)
			}
		}()
	}

	go m.pollLoop(ctx, anchor, tl, sink)

	for {
		select {
		case <-ctx.Done():
			return m.finishInterrupted(ctx, anchor, tl, sink)

		case <-tl.done:
			return m.finishComplete(anchor, tl, sink)

		case ev, ok := <-events:
			if !ok {
				// Push stream dropped; polling carries the session from here.
				m.logger.Warn("[MONITOR] Push stream closed mid-session", "anchor", anchor)
				events = nil
				continue
			}
			if ev.Anchor != anchor {
				continue
			}
			m.handleEvent(ctx, tl, sink, ev)
		}
	}
}

func (m *Monitor) handleEvent(ctx context.Context, tl *timeline, sink Sink, ev gen.Event) {
	switch ev.Kind {
	case gen.EventResponseUpdate, gen.EventResponseStreaming:
		tl.apply(ctx, sink, ev.Content, ev.Complete, m.logger)
	case gen.EventResponseComplete:
		tl.apply(ctx, sink, ev.Content, true, m.logger)
	case gen.EventResponseMonitored:
		// Fallback kind: no further events will arrive.
		tl.apply(ctx, sink, ev.Content, true, m.logger)
	default:
		m.logger.Debug("[MONITOR] Ignoring event kind", "kind", ev.Kind)
	}
}

// pollLoop issues polls on a fixed cadence until the session ends. Poll
// failures are logged and never abort the session.
func (m *Monitor) pollLoop(ctx context.Context, anchor string, tl *timeline, sink Sink) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tl.done:
			return
		case <-ticker.C:
		}

		result, err := m.poller.Poll(ctx, anchor, m.cfg.PollTimeout)
		if err != nil {
			m.logger.Debug("[MONITOR] Poll failed", "anchor", anchor, "error", err)
			continue
		}
		if !result.Success {
			m.logger.Debug("[MONITOR] Poll unsuccessful", "anchor", anchor, "error", result.Error)
			continue
		}
		tl.apply(ctx, sink, result.Content, result.Complete, m.logger)
	}
}

func (m *Monitor) finishComplete(anchor string, tl *timeline, sink Sink) (domain.SessionOutcome, error) {
	if tl.hasForwarded() {
		m.logger.Info("[MONITOR] Session completed", "anchor", anchor)
		return domain.OutcomeCompleted, nil
	}

	m.logger.Warn("[MONITOR] Session completed with no content", "anchor", anchor)
	m.deliverMarker(anchor, sink, markerNoContent)
	return domain.OutcomeCompleted, ErrNoContent
}

func (m *Monitor) finishInterrupted(ctx context.Context, anchor string, tl *timeline, sink Sink) (domain.SessionOutcome, error) {
	forwarded := tl.seal()

	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		m.logger.Warn("[MONITOR] Session cancelled", "anchor", anchor)
		return domain.OutcomeSourceError, ctx.Err()
	}

	if forwarded {
		// Last forwarded content stands as the final response.
		m.logger.Info("[MONITOR] Session timed out with content retained", "anchor", anchor)
		return domain.OutcomeTimedOut, nil
	}

	m.logger.Warn("[MONITOR] Session timed out with no content", "anchor", anchor)
	m.deliverMarker(anchor, sink, markerTimeoutNoReply)
	return domain.OutcomeTimedOut, ErrNoContent
}

// deliverMarker sends a terminal failure marker through the content sink.
// The session context is already expired at this point, so the marker gets
// its own short deadline.
func (m *Monitor) deliverMarker(anchor string, sink Sink, marker string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sink.Deliver(ctx, marker, true); err != nil {
		m.logger.Error("[MONITOR] Failed to deliver failure marker", "anchor", anchor, "error", err)
	}
}
