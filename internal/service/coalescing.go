package service

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// call is one upstream fetch that any number of callers may wait on.
type call struct {
	done    chan struct{}
	result  models.Report
	err     error
	waiters int // guarded by requestCoalescer.mu
}

// requestCoalescer runs at most one fetch per key at a time. Callers arriving
// while a fetch is running share its result.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*call
	timeout  time.Duration
}

func newRequestCoalescer(timeout time.Duration) *requestCoalescer {
	return &requestCoalescer{
		inFlight: make(map[string]*call),
		timeout:  timeout,
	}
}

// GetOrDo returns the result of the in-flight fetch for key, starting one with fn
// if none is running. shared reports whether the caller joined an existing fetch.
//
// fn runs detached from the first caller's cancellation, bounded by the coalescer
// timeout, so one caller going away does not fail the others. Each caller stops
// waiting when its own ctx is done.
func (rc *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func(context.Context) (models.Report, error)) (report models.Report, shared bool, err error) {
	rc.mu.Lock()
	c, exists := rc.inFlight[key]
	if !exists {
		c = &call{done: make(chan struct{})}
		rc.inFlight[key] = c
		go rc.run(ctx, key, c, fn)
	}
	c.waiters++
	rc.mu.Unlock()

	select {
	case <-c.done:
		return c.result, exists, c.err
	case <-ctx.Done():
		return models.Report{}, exists, ctx.Err()
	}
}

func (rc *requestCoalescer) run(ctx context.Context, key string, c *call, fn func(context.Context) (models.Report, error)) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rc.timeout)
	defer cancel()
	c.result, c.err = fn(fetchCtx)

	rc.mu.Lock()
	delete(rc.inFlight, key)
	rc.mu.Unlock()
	close(c.done)
}

// waiting returns the number of callers attached to the in-flight fetch for key.
func (rc *requestCoalescer) waiting(key string) int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if c, ok := rc.inFlight[key]; ok {
		return c.waiters
	}
	return 0
}
