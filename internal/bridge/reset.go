package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/deskbridge/deskbridge/internal/health"
	"github.com/deskbridge/deskbridge/internal/recovery"
)

const resetHelpText = `**Manual reset commands:**
- ` + "`!reset generator`" + ` - restart the generator desktop app
- ` + "`!reset api`" + ` - restart the generator API service
- ` + "`!reset bridge`" + ` - reinitialize the bridge connection
- ` + "`!reset all`" + ` - run all of the above in order
- ` + "`!reset status`" + ` - show component health
- ` + "`!reset help`" + ` - show this message`

// ResetHandler executes operator-issued !reset commands. Manual resets
// bypass the recovery gate's manual-only exclusions on purpose: a human
// asked for them.
type ResetHandler struct {
	executors map[string]recovery.Executor
	tracker   *health.Tracker
	logger    *slog.Logger
}

// NewResetHandler creates a handler over the same executor set the recovery
// gate uses.
func NewResetHandler(executors map[string]recovery.Executor, tracker *health.Tracker, logger *slog.Logger) *ResetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetHandler{executors: executors, tracker: tracker, logger: logger}
}

// Handle runs one command and returns the reply text. The command is the
// full post message starting with "!reset".
func (h *ResetHandler) Handle(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	target := "help"
	if len(fields) > 1 {
		target = strings.ToLower(fields[1])
	}

	switch target {
	case "help":
		return resetHelpText
	case "status":
		return FormatHealthStatus(h.tracker.ForceCheck(ctx))
	case "all":
		return h.resetAll(ctx)
	default:
		return h.resetOne(ctx, target)
	}
}

func (h *ResetHandler) resetOne(ctx context.Context, target string) string {
	exec, ok := h.executors[target]
	if !ok {
		return fmt.Sprintf("Unknown reset target `%s`.\n\n%s", target, resetHelpText)
	}

	h.logger.Info("[RESET] Manual reset requested", "target", target)
	diag, err := exec.Recover(ctx)
	if err != nil {
		h.logger.Error("[RESET] Manual reset failed", "target", target, "error", err)
		return fmt.Sprintf("❌ Reset of `%s` failed: %v", target, err)
	}
	if diag != "" {
		return fmt.Sprintf("✅ Reset of `%s` completed: %s", target, diag)
	}
	return fmt.Sprintf("✅ Reset of `%s` completed", target)
}

func (h *ResetHandler) resetAll(ctx context.Context) string {
	targets := make([]string, 0, len(h.executors))
	for name := range h.executors {
		targets = append(targets, name)
	}
	sort.Strings(targets)

	var b strings.Builder
	b.WriteString("**Resetting all components:**\n")
	for _, target := range targets {
		b.WriteString(h.resetOne(ctx, target))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatHealthStatus renders a health snapshot as a chat message.
func FormatHealthStatus(snap health.Snapshot) string {
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("**Component health:**\n")
	for _, name := range names {
		st := snap[name]
		icon := "✅"
		if !st.Healthy {
			icon = "❌"
		}
		fmt.Fprintf(&b, "%s `%s`", icon, name)
		if st.ConsecutiveFailures > 0 {
			fmt.Fprintf(&b, " (%d consecutive failures)", st.ConsecutiveFailures)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
