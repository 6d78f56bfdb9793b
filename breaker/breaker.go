package breaker

import (
	"sync"
	"time"
)

// State represents the circuit state.
type State int

const (
	// StateClosed means the cache is in use.
	StateClosed State = iota
	// StateOpen means the cache is bypassed.
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config configures the breaker.
type Config struct {
	// Threshold is the number of consecutive failures before opening.
	// Default: 5
	Threshold int

	// ResetTimeout is how long the circuit stays open before closing
	// again. The close is unconditional; there is no half-open probe.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)
}

// Breaker tracks backend failures and gates cache usage. State is local to
// the owning engine instance; it is never shared across processes.
type Breaker struct {
	config Config

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

// New creates a breaker with defaults applied.
func New(config Config) *Breaker {
	if config.Threshold <= 0 {
		config.Threshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	return &Breaker{config: config, state: StateClosed}
}

// Allow reports whether the cache may be used. An open circuit closes
// itself (counters reset) once the reset timeout has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked() == StateClosed
}

// Failure records a backend error, opening the circuit at the threshold.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.currentStateLocked() == StateOpen {
		return
	}

	b.failures++
	if b.failures >= b.config.Threshold {
		b.setStateLocked(StateOpen)
		b.openedAt = time.Now()
	}
}

// Success records a successful backend call, clearing the consecutive
// failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		b.failures = 0
	}
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked()
}

// Reset forces the circuit closed and clears counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.setStateLocked(StateClosed)
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) currentStateLocked() State {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.config.ResetTimeout {
		b.failures = 0
		b.setStateLocked(StateClosed)
	}
	return b.state
}

func (b *Breaker) setStateLocked(state State) {
	if b.state == state {
		return
	}
	from := b.state
	b.state = state
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(from, state)
	}
}
