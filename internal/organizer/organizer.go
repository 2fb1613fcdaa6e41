// Package organizer turns a stream of growing response text into one live
// message while streaming and a bounded paragraph sequence at finalization.
package organizer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Messenger is the channel-bound message sink the organizer drives. All
// three operations may fail independently; failures are non-fatal.
type Messenger interface {
	Send(ctx context.Context, text string) (string, error)
	Update(ctx context.Context, messageID, text string) error
	Delete(ctx context.Context, messageID string) error
}

// Organizer manages the live message and paragraph fan-out for one session.
// After finalization it is inert until Reset.
type Organizer struct {
	messenger Messenger
	maxLen    int
	logger    *slog.Logger

	mu         sync.Mutex
	liveID     string
	lastText   string
	paragraphs int
	finalized  bool
}

// New creates an Organizer writing through the given messenger.
func New(messenger Messenger, maxLen int, logger *slog.Logger) *Organizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Organizer{
		messenger: messenger,
		maxLen:    maxLen,
		logger:    logger,
	}
}

// ProcessIncrement applies one content observation. While not final the full
// text so far replaces the live message; a final increment, or text matching
// a completion sign-off, triggers finalization. No-op once finalized.
func (o *Organizer) ProcessIncrement(ctx context.Context, fullText string, final bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.finalized {
		return
	}
	o.lastText = fullText

	if final || LooksComplete(fullText) {
		o.finalizeLocked(ctx)
		return
	}

	o.streamLocked(ctx, fullText)
}

// Finalize ends the session with the last observed text. Safe to call when
// no increments ever arrived or after a prior finalization.
func (o *Organizer) Finalize(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.finalized || o.lastText == "" {
		o.finalized = true
		return
	}
	o.finalizeLocked(ctx)
}

// Reset clears the live-message handle and counters for a fresh session.
func (o *Organizer) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.liveID = ""
	o.lastText = ""
	o.paragraphs = 0
	o.finalized = false
}

// ParagraphCount reports how many paragraphs finalization emitted.
func (o *Organizer) ParagraphCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paragraphs
}

// ContentLength reports the length of the last observed text.
func (o *Organizer) ContentLength() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.lastText)
}

func (o *Organizer) streamLocked(ctx context.Context, text string) {
	if o.liveID == "" {
		id, err := o.messenger.Send(ctx, text)
		if err != nil {
			o.logger.Warn("[ORGANIZER] Failed to create live message", "error", err)
			return
		}
		o.liveID = id
		return
	}

	// Full-content replace; a failed update means the next one carries the
	// latest text.
	if err := o.messenger.Update(ctx, o.liveID, text); err != nil {
		o.logger.Warn("[ORGANIZER] Failed to update live message", "error", err)
	}
}

func (o *Organizer) finalizeLocked(ctx context.Context) {
	o.finalized = true

	if o.liveID != "" {
		if err := o.messenger.Delete(ctx, o.liveID); err != nil {
			// Stray live message, recoverable.
			o.logger.Warn("[ORGANIZER] Failed to delete live message", "message_id", o.liveID, "error", err)
		}
		o.liveID = ""
	}

	chunks := SplitParagraphs(o.lastText, o.maxLen)
	for _, chunk := range chunks {
		if _, err := o.messenger.Send(ctx, chunk); err != nil {
			o.logger.Warn("[ORGANIZER] Failed to send paragraph", "error", err)
		}
	}
	o.paragraphs = len(chunks)

	if len(chunks) > 1 {
		summary := fmt.Sprintf("📄 *Response complete (%d paragraphs)*", len(chunks))
		if _, err := o.messenger.Send(ctx, summary); err != nil {
			o.logger.Warn("[ORGANIZER] Failed to send summary", "error", err)
		}
	}

	o.logger.Info("[ORGANIZER] Response finalized", "paragraphs", len(chunks), "content_len", len(o.lastText))
}
