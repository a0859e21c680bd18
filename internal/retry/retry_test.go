package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Base:        0.001,
		Jitter:      0,
		Cap:         10 * time.Millisecond,
	}
}

func TestSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetriesThenSucceeds(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestZeroMaxAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := fastPolicy(0).Do(context.Background(), func() error {
		calls++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	want := errors.New("network error")
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestSingleAttemptRunsExactlyOnce(t *testing.T) {
	want := errors.New("boom")
	calls := 0
	err := fastPolicy(1).Do(context.Background(), func() error {
		calls++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls)
	}
}

func TestErrorFilterStopsRetries(t *testing.T) {
	fatal := errors.New("fatal")
	p := fastPolicy(5)
	p.RetryIf = func(err error) bool { return !errors.Is(err, fatal) }

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected %v, got %v", fatal, err)
	}
	if calls != 1 {
		t.Errorf("non-retryable error should not be retried, got %d calls", calls)
	}
}

func TestCancellationAbortsSleep(t *testing.T) {
	p := Policy{
		MaxAttempts: 3,
		Base:        5.0, // first sleep would be 5s
		Jitter:      0,
		Cap:         30 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := p.Do(ctx, func() error { return errors.New("transient") })
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation should abort the sleep promptly, took %v", elapsed)
	}
}
