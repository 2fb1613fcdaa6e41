package domain

import "time"

// SessionOutcome describes how a monitoring session ended.
type SessionOutcome string

const (
	// OutcomeCompleted means a completion signal arrived on either channel.
	OutcomeCompleted SessionOutcome = "completed"
	// OutcomeTimedOut means the overall timeout budget elapsed first.
	OutcomeTimedOut SessionOutcome = "timed_out"
	// OutcomeSourceError means the session failed before either channel produced a verdict.
	OutcomeSourceError SessionOutcome = "source_error"
)

// SessionRecord is the archived result of one response-delivery session.
type SessionRecord struct {
	Anchor        string
	ChannelID     string
	Outcome       SessionOutcome
	ContentLength int
	Paragraphs    int
	StartedAt     time.Time
	FinishedAt    time.Time
}
