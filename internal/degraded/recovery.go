package degraded

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

var (
	recoveryChan   chan struct{}
	recoveryChanMu sync.Mutex
)

// attemptTimeout bounds a single ProbeFunc call.
const attemptTimeout = 10 * time.Second

// ProbeFunc checks the upstream. Returns nil if it is reachable again.
type ProbeFunc func(ctx context.Context) error

// NotifyDegraded signals that the service is degraded. Triggers recovery if not already running.
// Safe to call from handlers; non-blocking.
func NotifyDegraded() {
	recoveryChanMu.Lock()
	ch := recoveryChan
	recoveryChanMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// StartRecoveryListener starts a goroutine that runs recovery when NotifyDegraded is called.
// At most one recovery runs at a time. Stops when ctx is cancelled.
func StartRecoveryListener(ctx context.Context, probe ProbeFunc, initial, max time.Duration, onExhausted func()) {
	ch := make(chan struct{}, 1)
	recoveryChanMu.Lock()
	recoveryChan = ch
	recoveryChanMu.Unlock()

	var running atomic.Bool
	go func() {
		defer func() {
			recoveryChanMu.Lock()
			if recoveryChan == ch {
				recoveryChan = nil
			}
			recoveryChanMu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				if running.Swap(true) {
					continue
				}
				go func() {
					defer running.Store(false)
					RunRecovery(ctx, probe, initial, max, onExhausted)
				}()
			}
		}
	}()
}

// RunRecovery probes the upstream on a Fibonacci schedule starting at initial
// (1m, 2m, 3m, 5m, 8m, 13m for initial=1m) up to max. The first successful probe
// resets the degraded state. If the last probe fails, onExhausted is called.
func RunRecovery(ctx context.Context, probe ProbeFunc, initial, max time.Duration, onExhausted func()) {
	if initial <= 0 || max < initial {
		return
	}
	delays := fibDelays(initial, max)
	for i, d := range delays {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		err := probe(attemptCtx)
		cancel()
		if err == nil {
			Reset()
			return
		}
		if i == len(delays)-1 && onExhausted != nil {
			onExhausted()
		}
	}
}

// fibDelays returns initial scaled by 1, 2, 3, 5, 8... while not above max.
func fibDelays(initial, max time.Duration) []time.Duration {
	var out []time.Duration
	for a, b := int64(1), int64(2); ; a, b = b, a+b {
		d := time.Duration(a) * initial
		if d > max {
			break
		}
		out = append(out, d)
	}
	return out
}
