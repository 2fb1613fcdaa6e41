package bridge

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	collapseNewlines = regexp.MustCompile(`\n{3,}`)
	newThreadTokens  = []string{"--new-thread", "/new", "newthread"}
)

// CleanMessage strips bot mention patterns and thread-control tokens from an
// incoming message. Reports whether the user asked for a fresh conversation
// thread.
func CleanMessage(message string, mentionPatterns []string) (string, bool) {
	cleaned := message
	for _, pattern := range mentionPatterns {
		cleaned = replaceFold(cleaned, pattern, "")
	}

	newThread := false
	for _, token := range newThreadTokens {
		if containsFold(cleaned, token) {
			newThread = true
			cleaned = replaceFold(cleaned, token, "")
		}
	}

	return strings.TrimSpace(cleaned), newThread
}

// FrameMessage wraps an outgoing message with routing context so the
// generator knows where it came from.
func FrameMessage(channelName, username, message string, at time.Time) string {
	return fmt.Sprintf("[BRIDGE: #%s | User: %s | %s] %s",
		channelName, username, at.Format("2006-01-02 15:04:05"), message)
}

// FormatResponse strips bridge framing artifacts the generator may echo
// back and collapses excess blank lines.
func FormatResponse(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "===") || strings.HasPrefix(trimmed, "[BRIDGE:") {
			continue
		}
		kept = append(kept, line)
	}
	out := strings.Join(kept, "\n")
	out = collapseNewlines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// IsMention reports whether the message addresses the bot.
func IsMention(message string, mentionPatterns []string) bool {
	for _, pattern := range mentionPatterns {
		if containsFold(message, pattern) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func replaceFold(s, old, new string) string {
	lower := strings.ToLower(s)
	target := strings.ToLower(old)
	for {
		idx := strings.Index(lower, target)
		if idx < 0 {
			return s
		}
		s = s[:idx] + new + s[idx+len(old):]
		lower = strings.ToLower(s)
	}
}
