// Package breaker implements the circuit-breaker state machine spec.md's
// design notes call for: explicit { closed, open(since), half-open } states
// with atomic transitions guarded by the same lock that guards the
// operation, evaluated lazily on entry rather than via background timers.
// strategy.SummarizationStrategy and retriever.Semantic each own one instance,
// matching spec.md §5's "per-instance, mutated under the same serialization
// as the operation it guards."
package breaker

import (
	"sync"
	"time"
)

// State is the breaker's externally observable status.
type State int

const (
	// Closed allows calls through; failures are being counted.
	Closed State = iota
	// Open rejects calls until Cooldown has elapsed since it tripped.
	Open
	// HalfOpen allows exactly one probe call through to test recovery.
	HalfOpen
)

// Breaker is a consecutive-failure circuit breaker. Zero value is not usable;
// construct with New.
type Breaker struct {
	mu               sync.Mutex
	failureThreshold int
	cooldown         time.Duration
	consecutive      int
	state            State
	openedAt         time.Time
	probing          bool
	onTrip           func()
}

// New builds a Breaker that opens after failureThreshold consecutive
// failures and stays open for cooldown before allowing a probe call.
func New(failureThreshold int, cooldown time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	return &Breaker{failureThreshold: failureThreshold, cooldown: cooldown, state: Closed}
}

// OnTrip registers a hook invoked every time the breaker transitions from
// closed/half-open into open. Intended for metrics wiring; callers should
// keep the hook fast and non-blocking since it runs under the breaker's lock.
func (b *Breaker) OnTrip(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrip = fn
}

// Allow reports whether a call should be attempted right now, and resolves
// any open->half-open transition lazily based on elapsed time.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Since(b.openedAt) >= b.cooldown {
			b.state = HalfOpen
			b.probing = true
			return true
		}
		return false
	case HalfOpen:
		if b.probing {
			return false // a probe is already in flight
		}
		b.probing = true
		return true
	}
	return true
}

// RecordSuccess resets the breaker to Closed. Any success — including a
// half-open probe — closes the breaker, per spec.md §4.6/§4.7.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutive = 0
	b.state = Closed
	b.probing = false
}

// RecordFailure counts a failure and trips the breaker open once the
// consecutive-failure threshold is reached. A failed half-open probe
// re-opens the breaker and restarts the cooldown.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.state = Open
		b.openedAt = time.Now()
		b.probing = false
		if b.onTrip != nil {
			b.onTrip()
		}
		return
	}

	b.consecutive++
	if b.consecutive >= b.failureThreshold {
		b.state = Open
		b.openedAt = time.Now()
		b.probing = false
		if b.onTrip != nil {
			b.onTrip()
		}
	}
}

// State returns the breaker's current state without mutating it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
