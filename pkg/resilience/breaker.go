package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
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

type BreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	// OnStateChange is called with the breaker's lock released.
	OnStateChange func(name string, from, to State)
}

// Breaker trips open after FailureThreshold consecutive failures and lets a
// trial call through once ResetTimeout has passed. Permanent errors and context
// cancellation are not counted as failures.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu               sync.Mutex
	state            State
	failures         int
	openedAt         time.Time
	halfOpenRequests int
}

func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
		now:    time.Now,
	}
}

// Execute runs fn if the breaker allows it and records the outcome.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn(ctx)
	b.after(err)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) before() error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if wait := b.cfg.ResetTimeout - b.now().Sub(b.openedAt); wait > 0 {
			b.mu.Unlock()
			return fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, b.name, wait)
		}
		b.halfOpenRequests = 1
		b.transitionLocked(StateHalfOpen)
		return nil
	case StateHalfOpen:
		if b.halfOpenRequests >= b.cfg.HalfOpenMaxRequests {
			b.mu.Unlock()
			return fmt.Errorf("%w: %s (half-open trial limit reached)", ErrCircuitOpen, b.name)
		}
		b.halfOpenRequests++
	}
	b.mu.Unlock()
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	if err == nil || IsPermanent(err) || errors.Is(err, context.Canceled) {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.transitionLocked(StateClosed)
			return
		}
		b.mu.Unlock()
		return
	}
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.openedAt = b.now()
		if b.state != StateOpen {
			b.transitionLocked(StateOpen)
			return
		}
	}
	b.mu.Unlock()
}

// transitionLocked changes state and releases b.mu before notifying.
func (b *Breaker) transitionLocked(to State) {
	from := b.state
	b.state = to
	if to != StateHalfOpen {
		b.halfOpenRequests = 0
	}
	failures := b.failures
	b.mu.Unlock()
	b.logger.Info("circuit state changed", "from", from.String(), "to", to.String(), "consecutive_failures", failures)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}
