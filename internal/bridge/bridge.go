// Package bridge polls the chat platform for bot mentions, submits them to
// the generator, and runs one response-delivery session per request.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/deskbridge/deskbridge/internal/config"
	"github.com/deskbridge/deskbridge/internal/domain"
	"github.com/deskbridge/deskbridge/internal/gen"
	"github.com/deskbridge/deskbridge/internal/health"
	"github.com/deskbridge/deskbridge/internal/monitor"
	"github.com/deskbridge/deskbridge/internal/organizer"
	"github.com/deskbridge/deskbridge/internal/platform"
	"github.com/deskbridge/deskbridge/internal/platform/seencache"
	"github.com/deskbridge/deskbridge/internal/store"
)

// Bridge is the main request loop.
type Bridge struct {
	cfg       *config.Config
	inbox     platform.Inbox
	messenger platform.Messenger
	generator *gen.Client
	monitor   *monitor.Monitor
	registry  *monitor.Registry
	tracker   *health.Tracker
	reset     *ResetHandler
	repo      store.Repository
	seen      *seencache.Cache
	logger    *slog.Logger

	// lastPolled tracks the newest post timestamp seen per channel.
	lastPolled map[string]time.Time
}

// New wires the bridge together.
func New(
	cfg *config.Config,
	inbox platform.Inbox,
	messenger platform.Messenger,
	generator *gen.Client,
	mon *monitor.Monitor,
	registry *monitor.Registry,
	tracker *health.Tracker,
	reset *ResetHandler,
	repo store.Repository,
	seen *seencache.Cache,
	logger *slog.Logger,
) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		cfg:        cfg,
		inbox:      inbox,
		messenger:  messenger,
		generator:  generator,
		monitor:    mon,
		registry:   registry,
		tracker:    tracker,
		reset:      reset,
		repo:       repo,
		seen:       seen,
		logger:     logger,
		lastPolled: make(map[string]time.Time),
	}
}

// Run polls channels for new posts until the context ends.
func (b *Bridge) Run(ctx context.Context) error {
	b.warmSeenCache(ctx)

	channels, err := b.inbox.Channels(ctx, b.cfg.Mattermost.TeamID)
	if err != nil {
		return fmt.Errorf("resolve channels: %w", err)
	}
	b.logger.Info("[BRIDGE] Watching channels", "count", len(channels))

	snap := b.tracker.ForceCheck(ctx)
	if b.tracker.Healthy() {
		b.logger.Info("[BRIDGE] All components healthy at startup")
	} else {
		b.logger.Warn("[BRIDGE] Starting degraded, recovery gate will attempt repair", "status", snap)
	}

	start := time.Now()
	for _, ch := range channels {
		b.lastPolled[ch.ID] = start
	}

	ticker := time.NewTicker(b.cfg.Mattermost.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("[BRIDGE] Poll loop shutting down", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			for _, ch := range channels {
				b.pollChannel(ctx, ch)
			}
		}
	}
}

func (b *Bridge) pollChannel(ctx context.Context, ch domain.Channel) {
	since := b.lastPolled[ch.ID]
	posts, err := b.inbox.PostsSince(ctx, ch.ID, since)
	if err != nil {
		b.logger.Warn("[BRIDGE] Failed to poll channel", "channel", ch.Name, "error", err)
		return
	}

	for _, post := range posts {
		if post.CreatedAt.After(b.lastPolled[ch.ID]) {
			b.lastPolled[ch.ID] = post.CreatedAt
		}
		b.handlePost(ctx, post, ch)
	}
}

func (b *Bridge) handlePost(ctx context.Context, post domain.Post, ch domain.Channel) {
	if post.UserID == b.cfg.Mattermost.BotUserID {
		return
	}
	if b.seen.Seen(post.ID) {
		return
	}
	b.seen.Add(post.ID)
	if err := b.repo.MarkPostProcessed(ctx, post.ID, time.Now()); err != nil {
		b.logger.Warn("[BRIDGE] Failed to persist processed post", "post_id", post.ID, "error", err)
	}

	trimmed := strings.TrimSpace(post.Message)
	if strings.HasPrefix(trimmed, "!reset") {
		reply := b.reset.Handle(ctx, trimmed)
		if _, err := b.messenger.Send(ctx, post.ChannelID, reply); err != nil {
			b.logger.Warn("[BRIDGE] Failed to send reset reply", "error", err)
		}
		return
	}

	if !IsMention(post.Message, b.cfg.Mattermost.MentionPatterns) {
		return
	}
	b.dispatch(ctx, post, ch)
}

func (b *Bridge) dispatch(ctx context.Context, post domain.Post, ch domain.Channel) {
	user, err := b.inbox.UserInfo(ctx, post.UserID)
	if err != nil {
		b.logger.Warn("[BRIDGE] Failed to resolve user", "user_id", post.UserID, "error", err)
		user = domain.User{ID: post.UserID, Username: "unknown"}
	}

	cleaned, newThread := CleanMessage(post.Message, b.cfg.Mattermost.MentionPatterns)
	if cleaned == "" {
		return
	}

	framed := FrameMessage(ch.Name, user.Username, cleaned, post.CreatedAt)
	metadata := map[string]any{
		"channel_id": post.ChannelID,
		"post_id":    post.ID,
		"new_thread": newThread,
	}

	anchor, err := b.generator.Submit(ctx, framed, metadata)
	if err != nil {
		b.logger.Error("[BRIDGE] Failed to submit message", "post_id", post.ID, "error", err)
		if _, sendErr := b.messenger.Send(ctx, post.ChannelID, "❌ Failed to reach the generator, try again later"); sendErr != nil {
			b.logger.Warn("[BRIDGE] Failed to send submit-error reply", "error", sendErr)
		}
		return
	}

	b.registry.Add(anchor, post.ChannelID)
	b.logger.Info("[BRIDGE] Session started",
		"anchor", anchor, "channel", ch.Name, "user", user.Username, "new_thread", newThread)

	go b.runSession(ctx, anchor, post.ChannelID)
}

// runSession drives one monitoring session to completion and archives the
// outcome.
func (b *Bridge) runSession(ctx context.Context, anchor, channelID string) {
	defer b.registry.Remove(anchor)
	started := time.Now()

	org := organizer.New(
		boundMessenger{m: b.messenger, channelID: channelID},
		b.cfg.Organizer.MaxParagraphLength,
		b.logger,
	)

	outcome, err := b.monitor.Run(ctx, anchor, organizerSink{org: org})
	switch {
	case err == nil:
		// Timed-out-with-content and completed sessions both finalize with
		// the last forwarded text.
		finalizeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		org.Finalize(finalizeCtx)
		cancel()
	case errors.Is(err, monitor.ErrNoContent):
		// Failure marker already went through the sink.
	default:
		b.logger.Error("[BRIDGE] Session failed", "anchor", anchor, "error", err)
	}

	rec := domain.SessionRecord{
		Anchor:        anchor,
		ChannelID:     channelID,
		Outcome:       outcome,
		ContentLength: org.ContentLength(),
		Paragraphs:    org.ParagraphCount(),
		StartedAt:     started,
		FinishedAt:    time.Now(),
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.repo.SaveSession(saveCtx, rec); err != nil {
		b.logger.Warn("[BRIDGE] Failed to archive session", "anchor", anchor, "error", err)
	}
}

func (b *Bridge) warmSeenCache(ctx context.Context) {
	ids, err := b.repo.LoadProcessedPosts(ctx, time.Now().Add(-b.cfg.Seen.TTL))
	if err != nil {
		b.logger.Warn("[BRIDGE] Failed to warm seen cache", "error", err)
		return
	}
	for _, id := range ids {
		b.seen.Add(id)
	}
	b.logger.Info("[BRIDGE] Seen cache warmed", "entries", len(ids))
}

// organizerSink feeds monitor increments into the organizer, normalizing
// bridge framing artifacts first.
type organizerSink struct {
	org *organizer.Organizer
}

var _ monitor.Sink = organizerSink{}

func (s organizerSink) Deliver(ctx context.Context, content string, final bool) error {
	formatted := FormatResponse(content)
	if formatted == "" && !final {
		return nil
	}
	s.org.ProcessIncrement(ctx, formatted, final)
	return nil
}

// boundMessenger binds the platform messenger to one channel, matching the
// organizer's per-session message sink.
type boundMessenger struct {
	m         platform.Messenger
	channelID string
}

var _ organizer.Messenger = boundMessenger{}

func (b boundMessenger) Send(ctx context.Context, text string) (string, error) {
	return b.m.Send(ctx, b.channelID, text)
}

func (b boundMessenger) Update(ctx context.Context, messageID, text string) error {
	return b.m.Update(ctx, messageID, text)
}

func (b boundMessenger) Delete(ctx context.Context, messageID string) error {
	return b.m.Delete(ctx, messageID)
}
