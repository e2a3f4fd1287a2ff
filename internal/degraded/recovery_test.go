package degraded

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestFibDelays(t *testing.T) {
	delays := fibDelays(time.Minute, 13*time.Minute)
	want := []time.Duration{1, 2, 3, 5, 8, 13}
	if len(delays) != len(want) {
		t.Fatalf("len(delays) = %d, want %d", len(delays), len(want))
	}
	for i, w := range want {
		if delays[i] != w*time.Minute {
			t.Errorf("delays[%d] = %v, want %v", i, delays[i], w*time.Minute)
		}
	}
}

func TestFibDelays_StopsAtMax(t *testing.T) {
	delays := fibDelays(time.Minute, 6*time.Minute)
	if last := delays[len(delays)-1]; last != 5*time.Minute {
		t.Errorf("last delay = %v, want 5m", last)
	}
}

func TestRunRecovery_Recovers(t *testing.T) {
	SetProbeFailed(true)
	t.Cleanup(Reset)
	attempts := atomic.Int32{}
	probe := func(ctx context.Context) error {
		if attempts.Add(1) >= 2 {
			return nil
		}
		return errors.New("fail")
	}
	exhausted := atomic.Bool{}
	RunRecovery(context.Background(), probe, 10*time.Millisecond, 100*time.Millisecond, func() {
		exhausted.Store(true)
	})
	if exhausted.Load() {
		t.Error("onExhausted should not have been called")
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}
	if ProbeFailed() {
		t.Error("successful recovery should clear the probe flag")
	}
}

func TestRunRecovery_Exhausted(t *testing.T) {
	probe := func(ctx context.Context) error { return errors.New("always fail") }
	exhausted := atomic.Bool{}
	RunRecovery(context.Background(), probe, 10*time.Millisecond, 50*time.Millisecond, func() {
		exhausted.Store(true)
	})
	if !exhausted.Load() {
		t.Error("onExhausted should have been called")
	}
}

func TestRunRecovery_InvalidBounds(t *testing.T) {
	called := atomic.Bool{}
	probe := func(ctx context.Context) error {
		called.Store(true)
		return nil
	}
	RunRecovery(context.Background(), probe, 0, time.Second, nil)
	RunRecovery(context.Background(), probe, time.Second, time.Millisecond, nil)
	if called.Load() {
		t.Error("probe should not run with invalid bounds")
	}
}

func TestNotifyDegraded_NoListener(t *testing.T) {
	NotifyDegraded()
}

func TestStartRecoveryListener_NotifyDegraded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	probed := make(chan struct{}, 1)
	probe := func(ctx context.Context) error {
		select {
		case probed <- struct{}{}:
		default:
		}
		return nil
	}
	StartRecoveryListener(ctx, probe, time.Millisecond, 100*time.Millisecond, nil)

	NotifyDegraded()
	select {
	case <-probed:
	case <-time.After(time.Second):
		t.Fatal("NotifyDegraded should trigger a recovery probe")
	}
}

func TestStartRecoveryListener_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := atomic.Bool{}
	probe := func(ctx context.Context) error {
		called.Store(true)
		return errors.New("fail")
	}
	StartRecoveryListener(ctx, probe, time.Millisecond, 10*time.Millisecond, nil)
	time.Sleep(30 * time.Millisecond)

	if called.Load() {
		t.Error("cancelled context should not run recovery")
	}
}
