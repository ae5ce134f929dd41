// Package resilience provides a circuit breaker for calls to external
// dependencies such as the take store database.
//
// [Breaker] is a three-state breaker (closed, open, half-open). While open it
// rejects calls with [ErrOpen] so that request handlers fail fast instead of
// queueing behind a dead connection pool.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls until the reset timeout has elapsed.
	StateOpen

	// StateHalfOpen lets a bounded number of trial calls through. One failed
	// trial re-opens the breaker; HalfOpenMax successful trials close it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes a [Breaker]. Zero fields take the defaults noted below.
type Config struct {
	// Name labels log lines, e.g. "takestore".
	Name string

	// MaxFailures is the number of consecutive failures that opens a closed
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of trials admitted while half-open.
	// Default: 3.
	HalfOpenMax int

	// IsFailure decides whether an error returned by the guarded call counts
	// against the breaker. Default: every non-nil error except context
	// cancellation and deadline expiry.
	IsFailure func(error) bool

	// Logger receives state transitions. Default: [slog.Default].
	Logger *slog.Logger

	// Now is the clock. Default: [time.Now].
	Now func() time.Time
}

// Breaker guards calls to one dependency. It is safe for concurrent use.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	isFailure    func(error) bool
	log          *slog.Logger
	now          func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	trials    int
	trialWins int
}

// New creates a closed [Breaker].
func New(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = defaultIsFailure
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		isFailure:    cfg.IsFailure,
		log:          cfg.Logger,
		now:          cfg.Now,
	}
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Do runs fn unless the breaker is open. A context that is already done is
// reported without calling fn and without touching the failure count.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	trial, err := b.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.record(trial, err)
	return err
}

// admit reports whether a call may proceed and whether it is a half-open
// trial.
func (b *Breaker) admit() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false, ErrOpen
		}
		b.state = StateHalfOpen
		b.trials, b.trialWins = 0, 0
		b.log.Info("circuit half-open", "name", b.name)
	}
	if b.state == StateHalfOpen {
		if b.trials >= b.halfOpenMax {
			return false, ErrOpen
		}
		b.trials++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) record(trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isFailure(err) {
		if !trial {
			b.failures = 0
			return
		}
		b.trialWins++
		if b.trialWins >= b.halfOpenMax {
			b.state = StateClosed
			b.failures = 0
			b.log.Info("circuit closed", "name", b.name)
		}
		return
	}

	if trial {
		b.trip()
		b.log.Warn("circuit re-opened by failed trial", "name", b.name, "err", err)
		return
	}
	b.failures++
	if b.state == StateClosed && b.failures >= b.maxFailures {
		b.trip()
		b.log.Warn("circuit opened", "name", b.name, "consecutive_failures", b.failures, "err", err)
	}
}

// trip must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.trials, b.trialWins = 0, 0
}

// State returns the current state. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures, b.trials, b.trialWins = 0, 0, 0
	b.log.Info("circuit reset", "name", b.name)
}
