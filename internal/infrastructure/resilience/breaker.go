package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("circuit breaker trial already in flight")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before allowing a trial call
	OpenTimeout time.Duration
	// IsExcluded reports errors that count as neither success nor failure.
	// Defaults to IsCancellation.
	IsExcluded func(err error) bool
	// OnStateChange is called with the breaker lock released
	OnStateChange func(name string, from, to State)
}

// IsCancellation reports whether err comes from the caller giving up
// rather than from the guarded tool.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type outcome int

const (
	outcomeFailure outcome = iota
	outcomeSuccess
	outcomeExcluded
)

// Breaker implements the circuit breaker pattern
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time

	mu        sync.Mutex
	state     State
	failures  uint32
	openUntil time.Time
	trial     bool
}

// New creates a circuit breaker
func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 3
	}
	if settings.OpenTimeout == 0 {
		settings.OpenTimeout = time.Minute
	}
	if settings.IsExcluded == nil {
		settings.IsExcluded = IsCancellation
	}
	return &Breaker{
		name:     name,
		settings: settings,
		now:      time.Now,
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, accounting for an elapsed open timeout
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && !b.now().Before(b.openUntil) {
		return StateHalfOpen
	}
	return b.state
}

// Do runs fn through b
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.before(); err != nil {
		return zero, err
	}

	result := outcomeFailure
	defer func() {
		b.after(result)
	}()

	value, err := fn()
	switch {
	case err == nil:
		result = outcomeSuccess
	case b.settings.IsExcluded(err):
		result = outcomeExcluded
	}
	return value, err
}

// Call runs fn through b
func (b *Breaker) Call(fn func() error) error {
	_, err := Do(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	var change func()
	defer func() {
		b.mu.Unlock()
		if change != nil {
			change()
		}
	}()

	switch b.state {
	case StateOpen:
		if b.now().Before(b.openUntil) {
			return ErrCircuitOpen
		}
		change = b.transition(StateHalfOpen)
		b.trial = true
		return nil
	case StateHalfOpen:
		if b.trial {
			return ErrTooManyRequests
		}
		b.trial = true
	}
	return nil
}

func (b *Breaker) after(result outcome) {
	b.mu.Lock()
	var change func()
	defer func() {
		b.mu.Unlock()
		if change != nil {
			change()
		}
	}()

	// An excluded call only gives back a half-open trial slot
	if result == outcomeExcluded {
		if b.state == StateHalfOpen {
			b.trial = false
		}
		return
	}

	success := result == outcomeSuccess
	if b.state == StateHalfOpen {
		b.trial = false
		if success {
			b.failures = 0
			change = b.transition(StateClosed)
		} else {
			b.openUntil = b.now().Add(b.settings.OpenTimeout)
			change = b.transition(StateOpen)
		}
		return
	}

	if success {
		b.failures = 0
		return
	}
	b.failures++
	if b.state == StateClosed && b.failures >= b.settings.FailureThreshold {
		b.openUntil = b.now().Add(b.settings.OpenTimeout)
		change = b.transition(StateOpen)
	}
}

// transition changes state under the lock and returns the notification to
// run after the lock is released.
func (b *Breaker) transition(to State) func() {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	if b.settings.OnStateChange == nil {
		return nil
	}
	name, notify := b.name, b.settings.OnStateChange
	return func() { notify(name, from, to) }
}
