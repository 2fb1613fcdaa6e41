package seencache

import (
	"fmt"
	"testing"
	"time"
)

func TestSeenAfterAdd(t *testing.T) {
	t.Parallel()

	c := New(10, time.Hour)
	if c.Seen("post-1") {
		t.Error("Expected unseen before Add")
	}
	c.Add("post-1")
	if !c.Seen("post-1") {
		t.Error("Expected seen after Add")
	}
}

func TestSizeBoundEvictsOldest(t *testing.T) {
	t.Parallel()

	c := New(3, time.Hour)
	for i := 0; i < 5; i++ {
		c.Add(fmt.Sprintf("post-%d", i))
	}

	if c.Len() != 3 {
		t.Fatalf("Expected cache bounded at 3, got %d", c.Len())
	}
	if c.Seen("post-0") || c.Seen("post-1") {
		t.Error("Expected oldest entries evicted")
	}
	for i := 2; i < 5; i++ {
		if !c.Seen(fmt.Sprintf("post-%d", i)) {
			t.Errorf("Expected post-%d retained", i)
		}
	}
}

func TestTTLExpiry(t *testing.T) {
	t.Parallel()

	c := New(100, time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Add("old")
	now = now.Add(30 * time.Second)
	c.Add("newer")
	now = now.Add(45 * time.Second)

	if c.Seen("old") {
		t.Error("Expected old entry expired after TTL")
	}
	if !c.Seen("newer") {
		t.Error("Expected newer entry still live")
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 live entry, got %d", c.Len())
	}
}

func TestAddIsIdempotent(t *testing.T) {
	t.Parallel()

	c := New(10, time.Hour)
	c.Add("post")
	c.Add("post")
	if c.Len() != 1 {
		t.Errorf("Expected duplicate Add to be a no-op, got %d entries", c.Len())
	}
}
