package idle

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTracker_WindowedCount(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	tr := NewTracker(clock.Now)

	tr.RecordRequest()
	tr.RecordRequest()
	clock.Advance(30 * time.Second)
	tr.RecordRequest()

	tests := []struct {
		window time.Duration
		want   int
	}{
		{time.Second, 1},
		{10 * time.Second, 1},
		{31 * time.Second, 3},
		{time.Hour, 3}, // clamped to retention
		{0, 0},
	}
	for _, tt := range tests {
		if got := tr.RequestCount(tt.window); got != tt.want {
			t.Errorf("RequestCount(%v) = %d, want %d", tt.window, got, tt.want)
		}
	}

	clock.Advance(retention)
	if got := tr.RequestCount(retention); got != 0 {
		t.Errorf("RequestCount after retention = %d, want 0", got)
	}
}

func TestTracker_RingReuseDropsOldCounts(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_000_000, 0)}
	tr := NewTracker(clock.Now)
	tr.RecordRequest()

	// Same ring slot, one full lap later.
	clock.Advance(retention)
	tr.RecordRequest()
	if got := tr.RequestCount(time.Second); got != 1 {
		t.Errorf("RequestCount = %d, want 1 (stale slot reset)", got)
	}
}

func TestIsIdle(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if IsIdle(time.Minute, 5, time.Minute, 5*time.Minute) {
		t.Error("IsIdle() = true before minimum lifespan, want false")
	}
	if !IsIdle(time.Minute, 5, 10*time.Minute, 5*time.Minute) {
		t.Error("IsIdle() = false with no traffic, want true")
	}
	for i := 0; i < 5; i++ {
		RecordRequest()
	}
	if IsIdle(time.Minute, 5, 10*time.Minute, 5*time.Minute) {
		t.Error("IsIdle() = true with 5 req in 1m at threshold 5/min, want false")
	}
	if IsIdle(time.Minute, 5, 10*time.Minute, 0) {
		t.Error("IsIdle() with zero minimum lifespan should be disabled")
	}
}
