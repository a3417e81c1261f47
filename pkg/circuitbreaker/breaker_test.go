package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func newTestBreaker(t *testing.T) (*Breaker, *time.Time) {
	t.Helper()
	b := New("test", Config{
		MaxRequests:      2,
		Timeout:          30 * time.Second,
		FailureThreshold: 3,
		SuccessThreshold: 2,
	})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now
}

func fail(b *Breaker) error {
	return b.Execute(context.Background(), func() error { return errBoom })
}

func succeed(b *Breaker) error {
	return b.Execute(context.Background(), func() error { return nil })
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(t)

	for i := 0; i < 3; i++ {
		if err := fail(b); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: expected underlying error, got %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open after threshold, got %v", b.State())
	}

	called := false
	err := b.Execute(context.Background(), func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Fatal("open breaker must not invoke the call")
	}
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	b, _ := newTestBreaker(t)

	fail(b)
	fail(b)
	succeed(b)
	fail(b)
	fail(b)

	if b.State() != StateClosed {
		t.Fatalf("interleaved success should keep the breaker closed, got %v", b.State())
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	b, now := newTestBreaker(t)

	for i := 0; i < 3; i++ {
		fail(b)
	}
	*now = now.Add(31 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open after timeout, got %v", b.State())
	}

	if err := succeed(b); err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
	if err := succeed(b); err != nil {
		t.Fatalf("second trial call failed: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after success threshold, got %v", b.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(t)

	for i := 0; i < 3; i++ {
		fail(b)
	}
	*now = now.Add(31 * time.Second)

	if err := fail(b); !errors.Is(err, errBoom) {
		t.Fatalf("trial call should run, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("failed trial call must reopen, got %v", b.State())
	}
}

func TestHalfOpenLimitsConcurrentTrials(t *testing.T) {
	b, now := newTestBreaker(t)

	for i := 0; i < 3; i++ {
		fail(b)
	}
	*now = now.Add(31 * time.Second)

	// Two in-flight trial calls fill the half-open budget; a third is refused.
	if _, err := b.admit(); err != nil {
		t.Fatalf("first trial call refused: %v", err)
	}
	if _, err := b.admit(); err != nil {
		t.Fatalf("second trial call refused: %v", err)
	}
	if _, err := b.admit(); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("expected ErrTooManyRequests, got %v", err)
	}
}

func TestExecuteHonorsCancelledContext(t *testing.T) {
	b, _ := newTestBreaker(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Execute(ctx, func() error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("cancelled call must not count as an outcome, got %v", b.State())
	}
}
