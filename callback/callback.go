// Package callback implements the callback-isolation half of C10: a
// registry of host-supplied listeners that must never be allowed to break
// the engine. Grounded on spec.md §9's "Callbacks and listeners" design
// note — an owned registry with a per-entry failure counter and disabled
// flag, no dynamic dispatch across thread/task boundaries.
package callback

import (
	"sync"

	"github.com/Liv-Coder/chat-memory-sub001/logger"
	"github.com/Liv-Coder/chat-memory-sub001/metrics"
)

// DefaultFailureThreshold is how many consecutive failures disable a
// callback, per spec.md §4.10.
const DefaultFailureThreshold = 3

// Func is a host-supplied side effect invoked on an event. A panic it
// raises counts as one failure.
type Func func(event any)

type entry struct {
	fn         Func
	failures   int
	disabled   bool
	warnedOnce bool
	threshold  int
}

// Manager owns zero or more named callback slots, each independently
// failure-isolated.
type Manager struct {
	mu        sync.Mutex
	callbacks map[string][]*entry
	threshold int
}

// New builds a Manager. threshold <= 0 uses DefaultFailureThreshold.
func New(threshold int) *Manager {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &Manager{callbacks: make(map[string][]*entry), threshold: threshold}
}

// Register adds a callback under the given event name. Re-registering under
// the same name adds an additional, independently tracked listener — it
// does not reset any existing listener's counter; use Reset for that.
func (m *Manager) Register(event string, fn Func) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[event] = append(m.callbacks[event], &entry{fn: fn, threshold: m.threshold})
}

// Reset clears failures and re-enables every listener registered under
// event, per spec.md §4.10 ("re-registering the callback resets its
// counter").
func (m *Manager) Reset(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.callbacks[event] {
		e.failures = 0
		e.disabled = false
		e.warnedOnce = false
	}
}

// Fire invokes every enabled listener registered under event with value.
// A listener that panics is isolated: runProtected recovers the panic, its
// own counter increments, it is disabled after threshold
// consecutive failures, and firing continues to the remaining listeners.
func (m *Manager) Fire(event string, value any) {
	m.mu.Lock()
	entries := append([]*entry(nil), m.callbacks[event]...)
	m.mu.Unlock()

	for _, e := range entries {
		m.invoke(event, e, value)
	}
}

func (m *Manager) invoke(event string, e *entry, value any) {
	m.mu.Lock()
	if e.disabled {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	failed := runProtected(e.fn, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !failed {
		e.failures = 0
		return
	}
	metrics.RecordCallbackFailure(event)
	e.failures++
	if e.failures >= e.threshold && !e.disabled {
		e.disabled = true
		metrics.RecordCallbackDisabled(event)
		if !e.warnedOnce {
			e.warnedOnce = true
			logger.Get("callback.manager").Warn("callback disabled after consecutive failures",
				"event", event, "failures", e.failures)
		}
	}
}

// runProtected invokes fn, converting a panic into a reported failure so one
// faulty callback can never take down the caller's task.
func runProtected(fn Func, value any) (failed bool) {
	defer func() {
		if r := recover(); r != nil {
			failed = true
		}
	}()
	fn(value)
	return false
}
