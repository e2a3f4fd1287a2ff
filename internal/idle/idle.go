// Package idle tracks dashboard traffic so /health can report an instance that
// nobody is using once it has outlived its minimum lifespan.
package idle

import (
	"sync"
	"time"
)

// retention bounds the longest window RequestCount can answer.
const retention = 30 * time.Minute

var defaultTracker = NewTracker(time.Now)

// RecordRequest records a dashboard or API request that counts toward idle detection.
func RecordRequest() {
	defaultTracker.RecordRequest()
}

// RequestCount returns the number of requests within the given window ending at now.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// IsIdle reports whether fewer than thresholdPerMin requests per minute arrived in
// the window. Instances younger than minLifespan are never idle.
func IsIdle(window time.Duration, thresholdPerMin int, uptime, minLifespan time.Duration) bool {
	if window <= 0 || minLifespan <= 0 || uptime < minLifespan {
		return false
	}
	limit := float64(thresholdPerMin) * window.Minutes()
	return float64(RequestCount(window)) < limit
}

// Reset clears all recorded requests. For tests only.
func Reset() {
	defaultTracker.Reset()
}

type bucket struct {
	second int64
	count  int
}

// Tracker counts requests in one-second buckets over a fixed ring, so memory
// stays constant however busy the dashboard is.
type Tracker struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets []bucket
}

// NewTracker returns a Tracker reading time from now.
func NewTracker(now func() time.Time) *Tracker {
	return &Tracker{
		now:     now,
		buckets: make([]bucket, int(retention/time.Second)),
	}
}

// RecordRequest records a request at the current time.
func (t *Tracker) RecordRequest() {
	t.mu.Lock()
	defer t.mu.Unlock()
	sec := t.now().Unix()
	b := &t.buckets[sec%int64(len(t.buckets))]
	if b.second != sec {
		b.second, b.count = sec, 0
	}
	b.count++
}

// RequestCount returns the number of requests in the window ending at now, at
// one-second resolution. Windows longer than the retention are clamped.
func (t *Tracker) RequestCount(window time.Duration) int {
	if window <= 0 {
		return 0
	}
	if window > retention {
		window = retention
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now().Unix()
	oldest := now - int64((window+time.Second-1)/time.Second) + 1
	n := 0
	for _, b := range t.buckets {
		if b.second >= oldest && b.second <= now {
			n += b.count
		}
	}
	return n
}

// Reset clears all recorded requests.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.buckets {
		t.buckets[i] = bucket{}
	}
}
