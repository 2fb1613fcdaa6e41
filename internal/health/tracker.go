// Package health runs periodic boolean checks over a fixed set of named
// components and fires edge-triggered notifications on state changes.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Probe is one named boolean check. The tracker is agnostic to what the
// check talks to.
type Probe struct {
	Name  string
	Check func(ctx context.Context) bool
}

// ComponentStatus is the tracked state of one component.
type ComponentStatus struct {
	Name                string    `json:"name"`
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastChecked         time.Time `json:"last_checked"`
}

// Snapshot is a consistent copy of all component records.
type Snapshot map[string]ComponentStatus

// Change is an edge-triggered notification: a component crossing from
// healthy to unhealthy or back.
type Change struct {
	Component string
	Healthy   bool
}

// Tracker runs the check loop. Callbacks must be registered before Start.
type Tracker struct {
	probes       []Probe
	interval     time.Duration
	checkTimeout time.Duration
	logger       *slog.Logger

	onChange []func(Change)
	onCycle  []func(Snapshot)

	mu     sync.RWMutex
	status map[string]*ComponentStatus

	// cycleMu serializes check cycles between the loop and ForceCheck.
	cycleMu sync.Mutex

	stop chan struct{}
	done chan struct{}
}

// NewTracker creates a tracker over the given probes. Components start out
// healthy; the first check establishes the real state without firing a
// recovery notification for a component that was never observed failing.
func NewTracker(probes []Probe, interval, checkTimeout time.Duration, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		probes:       probes,
		interval:     interval,
		checkTimeout: checkTimeout,
		logger:       logger,
		status:       make(map[string]*ComponentStatus, len(probes)),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, p := range probes {
		t.status[p.Name] = &ComponentStatus{Name: p.Name, Healthy: true}
	}
	return t
}

// OnChange registers an edge-triggered callback. Fired outside the status
// lock with a copy of the change.
func (t *Tracker) OnChange(fn func(Change)) {
	t.onChange = append(t.onChange, fn)
}

// OnCycle registers a callback invoked with a full snapshot after every
// check cycle.
func (t *Tracker) OnCycle(fn func(Snapshot)) {
	t.onCycle = append(t.onCycle, fn)
}

// Start launches the check loop. An initial cycle runs immediately.
func (t *Tracker) Start(ctx context.Context) {
	go func() {
		defer close(t.done)

		t.runCycle(ctx)

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stop:
				return
			case <-ticker.C:
				t.runCycle(ctx)
			}
		}
	}()
	t.logger.Info("[HEALTH] Tracker started", "components", len(t.probes), "interval", t.interval)
}

// Stop ends the loop, waiting for an in-flight cycle to finish.
func (t *Tracker) Stop() {
	close(t.stop)
	<-t.done
	// The loop exits between cycles; taking cycleMu here joins a cycle that
	// ForceCheck may still be running.
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()
	t.logger.Info("[HEALTH] Tracker stopped")
}

// ForceCheck runs one synchronous check cycle and returns the resulting
// snapshot.
func (t *Tracker) ForceCheck(ctx context.Context) Snapshot {
	t.runCycle(ctx)
	return t.Status()
}

// Status returns a consistent snapshot of all component records.
func (t *Tracker) Status() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := make(Snapshot, len(t.status))
	for name, st := range t.status {
		snap[name] = *st
	}
	return snap
}

// Healthy reports whether every component is currently healthy.
func (t *Tracker) Healthy() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, st := range t.status {
		if !st.Healthy {
			return false
		}
	}
	return true
}

func (t *Tracker) runCycle(ctx context.Context) {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()

	var changes []Change
	for _, probe := range t.probes {
		checkCtx, cancel := context.WithTimeout(ctx, t.checkTimeout)
		healthy := probe.Check(checkCtx)
		cancel()

		if change, fired := t.record(probe.Name, healthy); fired {
			changes = append(changes, change)
		}
	}

	for _, change := range changes {
		for _, fn := range t.onChange {
			fn(change)
		}
	}

	if len(t.onCycle) > 0 {
		snap := t.Status()
		for _, fn := range t.onCycle {
			fn(snap)
		}
	}
}

// record applies one observation. A notification fires only on a state
// transition, never for a component stuck in the same state.
func (t *Tracker) record(name string, healthy bool) (Change, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.status[name]
	st.LastChecked = time.Now()

	if healthy {
		recovered := !st.Healthy
		st.Healthy = true
		st.ConsecutiveFailures = 0
		if recovered {
			t.logger.Info("[HEALTH] Component recovered", "component", name)
			return Change{Component: name, Healthy: true}, true
		}
		return Change{}, false
	}

	st.ConsecutiveFailures++
	if st.Healthy {
		st.Healthy = false
		t.logger.Warn("[HEALTH] Component failed", "component", name, "consecutive_failures", st.ConsecutiveFailures)
		return Change{Component: name, Healthy: false}, true
	}
	return Change{}, false
}
