package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/deskbridge/deskbridge/internal/config"
	"github.com/deskbridge/deskbridge/internal/domain"
	"github.com/deskbridge/deskbridge/internal/gen"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSubscription struct {
	events chan gen.Event

	mu     sync.Mutex
	closed bool
}

func (s *fakeSubscription) Events() <-chan gen.Event { return s.events }

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
	}
	return nil
}

func (s *fakeSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeSource struct {
	sub *fakeSubscription
	err error
}

func (s *fakeSource) Subscribe(ctx context.Context) (gen.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.sub, nil
}

type fakePoller struct {
	mu      sync.Mutex
	results []func() (*gen.PollResult, error)
	calls   int
}

func (p *fakePoller) Poll(ctx context.Context, anchor string, timeout time.Duration) (*gen.PollResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.calls
	p.calls++
	if idx >= len(p.results) {
		idx = len(p.results) - 1
	}
	if idx < 0 {
		return nil, errors.New("no poll results scripted")
	}
	return p.results[idx]()
}

type delivery struct {
	content string
	final   bool
}

type recordSink struct {
	mu        sync.Mutex
	delivered []delivery
}

func (s *recordSink) Deliver(ctx context.Context, content string, final bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, delivery{content: content, final: final})
	return nil
}

func (s *recordSink) contents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.delivered))
	for i, d := range s.delivered {
		out[i] = d.content
	}
	return out
}

func testConfig() config.MonitorConfig {
	return config.MonitorConfig{
		Timeout:      300 * time.Millisecond,
		PollInterval: 50 * time.Millisecond,
		PollTimeout:  50 * time.Millisecond,
	}
}

func erroringPoller() *fakePoller {
	return &fakePoller{results: []func() (*gen.PollResult, error){
		func() (*gen.PollResult, error) { return nil, errors.New("connection refused") },
	}}
}

func TestSessionCompletesViaPush(t *testing.T) {
	t.Parallel()

	sub := &fakeSubscription{events: make(chan gen.Event, 4)}
	sub.events <- gen.Event{Kind: gen.EventResponseUpdate, Anchor: "abc", Content: "Hello"}
	sub.events <- gen.Event{Kind: gen.EventResponseComplete, Anchor: "abc", Content: "Hello world", Complete: true}

	sink := &recordSink{}
	m := New(&fakeSource{sub: sub}, erroringPoller(), testConfig(), discardLogger())

	outcome, err := m.Run(context.Background(), "abc", sink)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome != domain.OutcomeCompleted {
		t.Errorf("Expected outcome %s, got %s", domain.OutcomeCompleted, outcome)
	}

	got := sink.contents()
	want := []string{"Hello", "Hello world"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Delivery %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if !sub.isClosed() {
		t.Error("Expected push subscription to be closed after completion")
	}
}

func TestSessionTimeoutRetainsPolledContent(t *testing.T) {
	t.Parallel()

	sub := &fakeSubscription{events: make(chan gen.Event)}
	poller := &fakePoller{results: []func() (*gen.PollResult, error){
		func() (*gen.PollResult, error) {
			return &gen.PollResult{Success: true, Content: "Partial"}, nil
		},
		func() (*gen.PollResult, error) { return nil, errors.New("poll failed") },
	}}

	sink := &recordSink{}
	m := New(&fakeSource{sub: sub}, poller, testConfig(), discardLogger())

	outcome, err := m.Run(context.Background(), "xyz", sink)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome != domain.OutcomeTimedOut {
		t.Errorf("Expected outcome %s, got %s", domain.OutcomeTimedOut, outcome)
	}

	got := sink.contents()
	if len(got) != 1 || got[0] != "Partial" {
		t.Errorf("Expected exactly [Partial], got %v", got)
	}
	if !sub.isClosed() {
		t.Error("Expected push subscription to be closed after timeout")
	}
}

func TestDuplicateContentForwardedOnce(t *testing.T) {
	t.Parallel()

	sub := &fakeSubscription{events: make(chan gen.Event, 8)}
	sub.events <- gen.Event{Kind: gen.EventResponseUpdate, Anchor: "dup", Content: "same"}
	sub.events <- gen.Event{Kind: gen.EventResponseStreaming, Anchor: "dup", Content: "same"}
	sub.events <- gen.Event{Kind: gen.EventResponseComplete, Anchor: "dup", Content: "same", Complete: true}

	sink := &recordSink{}
	m := New(&fakeSource{sub: sub}, erroringPoller(), testConfig(), discardLogger())

	if _, err := m.Run(context.Background(), "dup", sink); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	got := sink.contents()
	if len(got) != 1 || got[0] != "same" {
		t.Errorf("Expected exactly one delivery of %q, got %v", "same", got)
	}
}

func TestForeignAnchorEventsIgnored(t *testing.T) {
	t.Parallel()

	sub := &fakeSubscription{events: make(chan gen.Event, 4)}
	sub.events <- gen.Event{Kind: gen.EventResponseUpdate, Anchor: "other", Content: "not mine"}
	sub.events <- gen.Event{Kind: gen.EventResponseComplete, Anchor: "mine", Content: "mine", Complete: true}

	sink := &recordSink{}
	m := New(&fakeSource{sub: sub}, erroringPoller(), testConfig(), discardLogger())

	if _, err := m.Run(context.Background(), "mine", sink); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	got := sink.contents()
	if len(got) != 1 || got[0] != "mine" {
		t.Errorf("Expected [mine], got %v", got)
	}
}

func TestTimeoutWithoutContentDeliversSingleMarker(t *testing.T) {
	t.Parallel()

	sub := &fakeSubscription{events: make(chan gen.Event)}
	sink := &recordSink{}
	m := New(&fakeSource{sub: sub}, erroringPoller(), testConfig(), discardLogger())

	outcome, err := m.Run(context.Background(), "silent", sink)
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("Expected ErrNoContent, got %v", err)
	}
	if outcome != domain.OutcomeTimedOut {
		t.Errorf("Expected outcome %s, got %s", domain.OutcomeTimedOut, outcome)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.delivered) != 1 {
		t.Fatalf("Expected exactly one delivery, got %d", len(sink.delivered))
	}
	if sink.delivered[0].content != markerTimeoutNoReply {
		t.Errorf("Expected timeout marker, got %q", sink.delivered[0].content)
	}
	if !sink.delivered[0].final {
		t.Error("Expected marker to be delivered as final")
	}
}

func TestCompletionWithoutContentDeliversNoContentMarker(t *testing.T) {
	t.Parallel()

	sub := &fakeSubscription{events: make(chan gen.Event, 2)}
	sub.events <- gen.Event{Kind: gen.EventResponseMonitored, Anchor: "empty"}

	sink := &recordSink{}
	m := New(&fakeSource{sub: sub}, erroringPoller(), testConfig(), discardLogger())

	outcome, err := m.Run(context.Background(), "empty", sink)
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("Expected ErrNoContent, got %v", err)
	}
	if outcome != domain.OutcomeCompleted {
		t.Errorf("Expected outcome %s, got %s", domain.OutcomeCompleted, outcome)
	}

	got := sink.contents()
	if len(got) != 1 || got[0] != markerNoContent {
		t.Errorf("Expected [%q], got %v", markerNoContent, got)
	}
}

func TestPushSubscribeFailureFallsBackToPolling(t *testing.T) {
	t.Parallel()

	poller := &fakePoller{results: []func() (*gen.PollResult, error){
		func() (*gen.PollResult, error) {
			return &gen.PollResult{Success: true, Content: "polled", Complete: true}, nil
		},
	}}

	sink := &recordSink{}
	m := New(&fakeSource{err: errors.New("dial failed")}, poller, testConfig(), discardLogger())

	outcome, err := m.Run(context.Background(), "poll-only", sink)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome != domain.OutcomeCompleted {
		t.Errorf("Expected outcome %s, got %s", domain.OutcomeCompleted, outcome)
	}

	got := sink.contents()
	if len(got) != 1 || got[0] != "polled" {
		t.Errorf("Expected [polled], got %v", got)
	}
}

func TestNoForwardAfterCompletion(t *testing.T) {
	t.Parallel()

	tl := newTimeline()
	sink := &recordSink{}
	ctx := context.Background()

	tl.apply(ctx, sink, "final text", true, discardLogger())
	tl.apply(ctx, sink, "late straggler", false, discardLogger())

	got := sink.contents()
	if len(got) != 1 || got[0] != "final text" {
		t.Errorf("Expected no forwards after completion, got %v", got)
	}
}

// TestTimelineNoRace exercises concurrent push and poll observations against
// one timeline. Run with: go test -race ./internal/monitor/...
func TestTimelineNoRace(t *testing.T) {
	t.Parallel()

	tl := newTimeline()
	sink := &recordSink{}
	ctx := context.Background()
	logger := discardLogger()

	const iterations = 200

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			tl.apply(ctx, sink, fmt.Sprintf("push-%d", i/10), false, logger)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			tl.apply(ctx, sink, fmt.Sprintf("poll-%d", i/10), false, logger)
		}
	}()
	wg.Wait()

	// Dedup invariant: no two consecutive deliveries carry the same text.
	got := sink.contents()
	for i := 1; i < len(got); i++ {
		if got[i] == got[i-1] {
			t.Fatalf("Consecutive duplicate delivery at %d: %q", i, got[i])
		}
	}
}
