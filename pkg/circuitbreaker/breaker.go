// Package circuitbreaker stops calls to a dependency that keeps failing,
// giving it time to recover before traffic resumes.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrOpen            = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

type Config struct {
	// MaxRequests is the number of trial calls admitted while half-open.
	MaxRequests uint32
	// Interval resets the failure streak while closed. Zero keeps counting
	// forever.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker.
	FailureThreshold uint32
	// SuccessThreshold is the consecutive-success count that closes a
	// half-open breaker.
	SuccessThreshold uint32
	Logger           *zap.Logger
}

// Breaker tracks consecutive outcomes of a protected call. Failures past the
// threshold open it; after the timeout a limited number of trial calls decide
// whether it closes again.
type Breaker struct {
	name   string
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	requests   uint32
	successes  uint32
	failures   uint32
	deadline   time.Time

	now func() time.Time // overridable in tests
}

func New(name string, cfg Config) *Breaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	b := &Breaker{
		name:   name,
		cfg:    cfg,
		logger: cfg.Logger,
		now:    time.Now,
	}
	b.newGeneration(b.now())
	return b
}

// Execute runs fn behind the breaker. When the breaker is open it returns
// ErrOpen without calling fn; otherwise fn's error is returned as-is and
// recorded as the outcome.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	generation, err := b.admit()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			b.record(generation, false)
			panic(r)
		}
	}()

	err = fn()
	b.record(generation, err == nil)
	return err
}

// State reports the breaker's current state, applying any pending deadline
// transition first.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, _ := b.refresh(b.now())
	return state
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, generation := b.refresh(b.now())
	switch {
	case state == StateOpen:
		return generation, ErrOpen
	case state == StateHalfOpen && b.requests >= b.cfg.MaxRequests:
		return generation, ErrTooManyRequests
	}

	b.requests++
	return generation, nil
}

// record applies an outcome, unless the breaker already moved to a new
// generation while the call was in flight.
func (b *Breaker) record(generation uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	state, current := b.refresh(now)
	if current != generation {
		return
	}

	if success {
		b.successes++
		b.failures = 0
		if state == StateHalfOpen && b.successes >= b.cfg.SuccessThreshold {
			b.transition(StateClosed, now)
		}
		return
	}

	b.failures++
	b.successes = 0
	switch state {
	case StateClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		// A failed trial call sends the breaker straight back to open.
		b.transition(StateOpen, now)
	}
}

// refresh applies deadline-driven transitions and returns the effective
// state. Callers must hold the lock.
func (b *Breaker) refresh(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if !b.deadline.IsZero() && b.deadline.Before(now) {
			b.newGeneration(now)
		}
	case StateOpen:
		if b.deadline.Before(now) {
			b.transition(StateHalfOpen, now)
		}
	}
	return b.state, b.generation
}

func (b *Breaker) transition(state State, now time.Time) {
	if b.state == state {
		return
	}
	prev := b.state
	b.state = state
	b.newGeneration(now)

	b.logger.Info("Circuit breaker state changed",
		zap.String("name", b.name),
		zap.String("from", prev.String()),
		zap.String("to", state.String()),
	)
}

func (b *Breaker) newGeneration(now time.Time) {
	b.generation++
	b.requests = 0
	b.successes = 0
	b.failures = 0

	switch b.state {
	case StateClosed:
		if b.cfg.Interval == 0 {
			b.deadline = time.Time{}
		} else {
			b.deadline = now.Add(b.cfg.Interval)
		}
	case StateOpen:
		b.deadline = now.Add(b.cfg.Timeout)
	default:
		b.deadline = time.Time{}
	}
}
