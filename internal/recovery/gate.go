// Package recovery decides when a failing component gets its recovery
// action invoked, and provides the action executors.
package recovery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/deskbridge/deskbridge/internal/health"
)

// debounceThreshold is how many consecutive failures a component needs
// before it becomes recovery-eligible. One-check debounce against blips.
const debounceThreshold = 2

const defaultActionTimeout = 60 * time.Second

// Executor performs the recovery action for one component. Returns optional
// diagnostic text.
type Executor interface {
	Recover(ctx context.Context) (string, error)
}

// Gate evaluates component health snapshots and triggers recovery actions.
// It never mutates failure counters; those change only through the next
// health check.
type Gate struct {
	executors     map[string]Executor
	manualOnly    map[string]bool
	maxAttempts   int
	actionTimeout time.Duration
	logger        *slog.Logger

	mu              sync.Mutex
	loggedManual    map[string]bool
	loggedExhausted map[string]bool
}

// NewGate creates a Gate. manualOnly components are never auto-recovered.
func NewGate(executors map[string]Executor, manualOnly []string, maxAttempts int, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	manual := make(map[string]bool, len(manualOnly))
	for _, name := range manualOnly {
		manual[name] = true
	}
	return &Gate{
		executors:       executors,
		manualOnly:      manual,
		maxAttempts:     maxAttempts,
		actionTimeout:   defaultActionTimeout,
		logger:          logger,
		loggedManual:    make(map[string]bool),
		loggedExhausted: make(map[string]bool),
	}
}

// Evaluate inspects one health snapshot and invokes at most one recovery
// action per eligible component. Intended to run once per check cycle.
func (g *Gate) Evaluate(ctx context.Context, snap health.Snapshot) {
	for name, st := range snap {
		g.evaluateComponent(ctx, name, st)
	}
}

func (g *Gate) evaluateComponent(ctx context.Context, name string, st health.ComponentStatus) {
	if st.Healthy {
		g.mu.Lock()
		delete(g.loggedManual, name)
		delete(g.loggedExhausted, name)
		g.mu.Unlock()
		return
	}

	if st.ConsecutiveFailures < debounceThreshold {
		return
	}

	if g.manualOnly[name] {
		g.mu.Lock()
		logged := g.loggedManual[name]
		g.loggedManual[name] = true
		g.mu.Unlock()
		if !logged {
			g.logger.Warn("[RECOVERY] Component requires manual intervention, auto-recovery disabled",
				"component", name, "consecutive_failures", st.ConsecutiveFailures)
		}
		return
	}

	if st.ConsecutiveFailures > g.maxAttempts {
		g.mu.Lock()
		logged := g.loggedExhausted[name]
		g.loggedExhausted[name] = true
		g.mu.Unlock()
		if !logged {
			g.logger.Error("[RECOVERY] Recovery attempts exhausted",
				"component", name, "consecutive_failures", st.ConsecutiveFailures, "max_attempts", g.maxAttempts)
		}
		return
	}

	exec, ok := g.executors[name]
	if !ok {
		g.logger.Warn("[RECOVERY] No recovery action registered", "component", name)
		return
	}

	g.logger.Info("[RECOVERY] Invoking recovery action",
		"component", name, "consecutive_failures", st.ConsecutiveFailures)

	actionCtx, cancel := context.WithTimeout(ctx, g.actionTimeout)
	defer cancel()

	diag, err := exec.Recover(actionCtx)
	if err != nil {
		g.logger.Error("[RECOVERY] Recovery action failed", "component", name, "error", err, "diagnostic", diag)
		return
	}
	g.logger.Info("[RECOVERY] Recovery action succeeded", "component", name, "diagnostic", diag)
}
