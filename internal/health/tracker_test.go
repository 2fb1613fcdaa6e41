package health

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedProbe replays a fixed boolean sequence, repeating the last value.
func scriptedProbe(name string, sequence []bool) (Probe, *int) {
	idx := new(int)
	var mu sync.Mutex
	return Probe{
		Name: name,
		Check: func(ctx context.Context) bool {
			mu.Lock()
			defer mu.Unlock()
			i := *idx
			if i >= len(sequence) {
				i = len(sequence) - 1
			}
			*idx++
			return sequence[i]
		},
	}, idx
}

func TestEdgeTriggeredNotifications(t *testing.T) {
	t.Parallel()

	probe, _ := scriptedProbe("comp", []bool{true, false, false, false, true})
	tr := NewTracker([]Probe{probe}, time.Hour, time.Second, discardLogger())

	var mu sync.Mutex
	var changes []Change
	tr.OnChange(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		tr.runCycle(ctx)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 2 {
		t.Fatalf("Expected exactly 2 notifications, got %d: %v", len(changes), changes)
	}
	if changes[0].Healthy || changes[0].Component != "comp" {
		t.Errorf("Expected first notification to be a failure, got %+v", changes[0])
	}
	if !changes[1].Healthy {
		t.Errorf("Expected second notification to be a recovery, got %+v", changes[1])
	}
}

func TestConsecutiveFailureCounting(t *testing.T) {
	t.Parallel()

	probe, _ := scriptedProbe("comp", []bool{false, false, false, true})
	tr := NewTracker([]Probe{probe}, time.Hour, time.Second, discardLogger())
	ctx := context.Background()

	expected := []int{1, 2, 3, 0}
	for i, want := range expected {
		snap := tr.ForceCheck(ctx)
		if got := snap["comp"].ConsecutiveFailures; got != want {
			t.Errorf("Cycle %d: expected %d consecutive failures, got %d", i, want, got)
		}
	}

	if !tr.Healthy() {
		t.Error("Expected tracker healthy after recovery")
	}
}

func TestStatusSnapshotIsConsistentCopy(t *testing.T) {
	t.Parallel()

	probe, _ := scriptedProbe("comp", []bool{false})
	tr := NewTracker([]Probe{probe}, time.Hour, time.Second, discardLogger())

	snap := tr.ForceCheck(context.Background())
	st := snap["comp"]
	st.ConsecutiveFailures = 999

	if tr.Status()["comp"].ConsecutiveFailures == 999 {
		t.Error("Snapshot mutation leaked into tracker state")
	}
	if tr.Healthy() {
		t.Error("Expected tracker unhealthy with a failing component")
	}
}

func TestOnCycleReceivesSnapshotEveryCycle(t *testing.T) {
	t.Parallel()

	probe, _ := scriptedProbe("comp", []bool{false, false})
	tr := NewTracker([]Probe{probe}, time.Hour, time.Second, discardLogger())

	var mu sync.Mutex
	var cycles []Snapshot
	tr.OnCycle(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		cycles = append(cycles, s)
	})

	ctx := context.Background()
	tr.runCycle(ctx)
	tr.runCycle(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(cycles) != 2 {
		t.Fatalf("Expected 2 cycle snapshots, got %d", len(cycles))
	}
	if cycles[1]["comp"].ConsecutiveFailures != 2 {
		t.Errorf("Expected second snapshot to show 2 failures, got %d", cycles[1]["comp"].ConsecutiveFailures)
	}
}

func TestStopJoinsInFlightCycle(t *testing.T) {
	t.Parallel()

	slow := Probe{
		Name: "slow",
		Check: func(ctx context.Context) bool {
			time.Sleep(20 * time.Millisecond)
			return true
		},
	}
	tr := NewTracker([]Probe{slow}, 5*time.Millisecond, time.Second, discardLogger())

	tr.Start(context.Background())
	time.Sleep(15 * time.Millisecond)
	tr.Stop()

	// After Stop returns no cycle may still be running; a clean ForceCheck
	// proves the cycle mutex is free.
	done := make(chan struct{})
	go func() {
		tr.ForceCheck(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ForceCheck blocked after Stop, cycle not joined")
	}
}
