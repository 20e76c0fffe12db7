package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

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

type CircuitBreakerConfig struct {
	Name        string
	MaxFailures int
	// Timeout is how long the circuit stays open before admitting probes.
	Timeout time.Duration
	// HalfOpenProbes caps concurrent calls while half-open; that many
	// successes close the circuit.
	HalfOpenProbes int
	// IsFailure decides whether an error counts against the dependency.
	// Nil counts every error except the caller's own cancellation.
	IsFailure     func(ctx context.Context, err error) bool
	Now           func() time.Time
	OnStateChange func(name string, from, to State)
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	State       State
	Failures    int
	LastFailure time.Time
	OpenedAt    time.Time
}

// CircuitBreaker guards a flaky dependency: after MaxFailures consecutive
// failures it rejects calls until Timeout elapses, then lets a limited
// number of probes through.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	inFlight    int
	lastFailure time.Time
	openedAt    time.Time
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = defaultIsFailure
	}
	return &CircuitBreaker{config: cfg, state: StateClosed}
}

func defaultIsFailure(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return false
	}
	return true
}

// Execute runs fn unless the circuit rejects the call, in which case the
// returned error wraps ErrCircuitOpen.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)
	cb.complete(probe, err != nil && cb.config.IsFailure(ctx, err))
	return err
}

func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	var changed func()
	defer func() {
		cb.mu.Unlock()
		if changed != nil {
			changed()
		}
	}()

	if cb.state == StateOpen {
		wait := cb.config.Timeout - cb.config.Now().Sub(cb.openedAt)
		if wait > 0 {
			return false, fmt.Errorf("%w: %s retry in %s", ErrCircuitOpen, cb.config.Name, wait.Round(time.Second))
		}
		changed = cb.transitionTo(StateHalfOpen)
	}

	if cb.state == StateHalfOpen {
		if cb.inFlight >= cb.config.HalfOpenProbes {
			return false, fmt.Errorf("%w: %s probe in progress", ErrCircuitOpen, cb.config.Name)
		}
		cb.inFlight++
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) complete(probe, failed bool) {
	cb.mu.Lock()
	var changed func()
	defer func() {
		cb.mu.Unlock()
		if changed != nil {
			changed()
		}
	}()

	if probe {
		cb.inFlight--
	}

	if failed {
		cb.lastFailure = cb.config.Now()
		switch cb.state {
		case StateClosed:
			cb.failures++
			if cb.failures >= cb.config.MaxFailures {
				changed = cb.transitionTo(StateOpen)
			}
		case StateHalfOpen:
			changed = cb.transitionTo(StateOpen)
		}
		return
	}

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		if probe {
			cb.successes++
			if cb.successes >= cb.config.HalfOpenProbes {
				changed = cb.transitionTo(StateClosed)
			}
		}
	}
}

// transitionTo must be called with mu held. It returns the state-change
// notification to run once the lock is released.
func (cb *CircuitBreaker) transitionTo(next State) func() {
	prev := cb.state
	if prev == next {
		return nil
	}

	cb.state = next
	cb.failures = 0
	cb.successes = 0
	if next == StateOpen {
		cb.openedAt = cb.config.Now()
		cb.inFlight = 0
	}

	if cb.config.OnStateChange == nil {
		return nil
	}
	name, hook := cb.config.Name, cb.config.OnStateChange
	return func() { hook(name, prev, next) }
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	changed := cb.transitionTo(StateClosed)
	cb.inFlight = 0
	cb.mu.Unlock()

	if changed != nil {
		changed()
	}
}

func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Snapshot{
		State:       cb.state,
		Failures:    cb.failures,
		LastFailure: cb.lastFailure,
		OpenedAt:    cb.openedAt,
	}
}
