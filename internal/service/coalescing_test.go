package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// waitForWaiters polls until n callers are attached to key's fetch.
func waitForWaiters(t *testing.T, rc *requestCoalescer, key string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for rc.waiting(key) < n {
		if time.Now().After(deadline) {
			t.Fatalf("waiting(%q) = %d, want %d", key, rc.waiting(key), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRequestCoalescer_ConcurrentCallersShareOneFetch(t *testing.T) {
	rc := newRequestCoalescer(5 * time.Second)
	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(ctx context.Context) (models.Report, error) {
		calls.Add(1)
		<-release
		return models.Report{Location: "Kathmandu", Current: models.CurrentConditions{Temp: 21}}, nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]models.Report, n)
	shared := make([]bool, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], shared[i], errs[i] = rc.GetOrDo(context.Background(), "k", fn)
		}(i)
	}
	waitForWaiters(t, rc, "k", n)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	sharedCount := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d err = %v", i, errs[i])
		}
		if results[i].Location != "Kathmandu" {
			t.Errorf("caller %d location = %q", i, results[i].Location)
		}
		if shared[i] {
			sharedCount++
		}
	}
	if sharedCount != n-1 {
		t.Errorf("shared callers = %d, want %d", sharedCount, n-1)
	}
}

func TestRequestCoalescer_ErrorPropagatesToWaiters(t *testing.T) {
	rc := newRequestCoalescer(5 * time.Second)
	wantErr := errors.New("upstream down")
	release := make(chan struct{})
	fn := func(ctx context.Context) (models.Report, error) {
		<-release
		return models.Report{}, wantErr
	}

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, _, err := rc.GetOrDo(context.Background(), "k", fn)
			errs <- err
		}()
	}
	waitForWaiters(t, rc, "k", 2)
	close(release)
	for i := 0; i < 2; i++ {
		if err := <-errs; !errors.Is(err, wantErr) {
			t.Errorf("err = %v, want %v", err, wantErr)
		}
	}
}

func TestRequestCoalescer_CallerCancelDoesNotFailFetch(t *testing.T) {
	rc := newRequestCoalescer(5 * time.Second)
	release := make(chan struct{})
	fn := func(ctx context.Context) (models.Report, error) {
		select {
		case <-release:
			return models.Report{Location: "Pokhara"}, nil
		case <-ctx.Done():
			return models.Report{}, ctx.Err()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := rc.GetOrDo(ctx, "k", fn)
		firstErr <- err
	}()
	waitForWaiters(t, rc, "k", 1)

	second := make(chan models.Report, 1)
	go func() {
		r, _, _ := rc.GetOrDo(context.Background(), "k", fn)
		second <- r
	}()
	waitForWaiters(t, rc, "k", 2)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("first caller err = %v, want context.Canceled", err)
	}
	close(release)
	if r := <-second; r.Location != "Pokhara" {
		t.Errorf("second caller location = %q, want Pokhara", r.Location)
	}
}

func TestRequestCoalescer_TimeoutBoundsFetch(t *testing.T) {
	rc := newRequestCoalescer(20 * time.Millisecond)
	fn := func(ctx context.Context) (models.Report, error) {
		<-ctx.Done()
		return models.Report{}, ctx.Err()
	}
	_, _, err := rc.GetOrDo(context.Background(), "k", fn)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestRequestCoalescer_KeyClearedAfterCompletion(t *testing.T) {
	rc := newRequestCoalescer(time.Second)
	var calls atomic.Int32
	fn := func(ctx context.Context) (models.Report, error) {
		calls.Add(1)
		return models.Report{}, nil
	}
	for i := 0; i < 3; i++ {
		if _, shared, err := rc.GetOrDo(context.Background(), "k", fn); err != nil || shared {
			t.Fatalf("call %d: shared=%v err=%v", i, shared, err)
		}
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("fetch calls = %d, want 3", got)
	}
}
