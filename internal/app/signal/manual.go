package signal

import (
	"sync"
	"time"
)

// Manual is a source controlled by the user. Its setters may be called from
// any goroutine; queued actions are delivered by the next Sample.
type Manual struct {
	mu      sync.Mutex
	threat  bool
	pending []Action
}

// NewManual creates a manual source with no threat.
func NewManual() *Manual {
	return &Manual{}
}

// SetThreat sets the threat signal.
func (m *Manual) SetThreat(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threat = v
}

// ToggleThreat flips the threat signal and returns the new value.
func (m *Manual) ToggleThreat() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threat = !m.threat
	return m.threat
}

// Threat returns the current threat signal.
func (m *Manual) Threat() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threat
}

// Queue schedules an action for the next tick.
func (m *Manual) Queue(a Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, a)
}

// Sample returns the threat signal and drains queued actions.
func (m *Manual) Sample(time.Duration) (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := Frame{Threat: m.threat, Actions: m.pending}
	m.pending = nil
	return f, nil
}
