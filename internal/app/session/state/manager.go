package state

import (
	"sync"
	"time"
)

// Info is a point-in-time copy of the session state.
type Info struct {
	SessionID   string
	Phase       Phase
	StartedAt   *time.Time
	EndedAt     *time.Time
	Ticks       uint64
	ThreatTicks uint64 // Ticks sampled with a threat present
	Threat      bool   // Signal of the last tick
	Reason      string // Why the session finished
}

// Manager manages session state with thread-safe access.
type Manager struct {
	mu sync.RWMutex

	// Session identity
	sessionID string

	// Session lifecycle
	phase  Phase
	reason string

	// Schedule
	startedAt *time.Time
	endedAt   *time.Time

	// Counters
	ticks       uint64
	threatTicks uint64
	lastThreat  bool
}

// New creates a new state manager.
func New(sessionID string) *Manager {
	return &Manager{
		sessionID: sessionID,
		phase:     PhaseWaiting,
	}
}

// GetPhase returns the current session phase.
func (m *Manager) GetPhase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// Start moves a waiting session to running.
// It returns false if the session was already started.
func (m *Manager) Start(at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseWaiting {
		return false
	}
	m.phase = PhaseRunning
	m.startedAt = &at
	return true
}

// Finish moves the session to finished.
// It returns false if the session had already finished.
func (m *Manager) Finish(at time.Time, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseFinished {
		return false
	}
	m.phase = PhaseFinished
	m.endedAt = &at
	m.reason = reason
	return true
}

// GetSessionID returns the session ID.
func (m *Manager) GetSessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// GetTimes returns the start and end times.
func (m *Manager) GetTimes() (*time.Time, *time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.startedAt, m.endedAt
}

// RecordTick counts one tick and its signal.
func (m *Manager) RecordTick(threat bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++
	if threat {
		m.threatTicks++
	}
	m.lastThreat = threat
}

// Info returns a copy of the state.
func (m *Manager) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Info{
		SessionID:   m.sessionID,
		Phase:       m.phase,
		StartedAt:   m.startedAt,
		EndedAt:     m.endedAt,
		Ticks:       m.ticks,
		ThreatTicks: m.threatTicks,
		Threat:      m.lastThreat,
		Reason:      m.reason,
	}
}
