package debounce

import (
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/combatbgm/internal/infra/clock"
)

// Direction identifies a combat transition.
type Direction int

const (
	DirectionEnterCombat Direction = iota // GAME -> BATTLE
	DirectionExitCombat                   // BATTLE -> GAME
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionEnterCombat:
		return "enter_combat"
	case DirectionExitCombat:
		return "exit_combat"
	default:
		return "unknown"
	}
}

// Scheduler keeps at most one pending transition per direction.
//
// Per direction: IDLE -> schedule -> PENDING -> (delay elapses) -> callback -> IDLE,
// or PENDING -> cancel -> IDLE. Scheduling a pending direction is a no-op.
type Scheduler struct {
	queue  *Queue
	tokens [2]*Token
}

// NewScheduler creates a scheduler whose delays are measured on c.
func NewScheduler(c clock.Clock) *Scheduler {
	return &Scheduler{queue: NewQueue(c)}
}

// ScheduleEnterCombat arms the enter-combat transition unless one is pending.
func (s *Scheduler) ScheduleEnterCombat(delay time.Duration, onFire func()) bool {
	return s.schedule(DirectionEnterCombat, delay, onFire)
}

// ScheduleExitCombat arms the exit-combat transition unless one is pending.
func (s *Scheduler) ScheduleExitCombat(delay time.Duration, onFire func()) bool {
	return s.schedule(DirectionExitCombat, delay, onFire)
}

// CancelEnterCombat cancels a pending enter-combat transition.
func (s *Scheduler) CancelEnterCombat() bool {
	return s.cancel(DirectionEnterCombat)
}

// CancelExitCombat cancels a pending exit-combat transition.
func (s *Scheduler) CancelExitCombat() bool {
	return s.cancel(DirectionExitCombat)
}

// CancelAll cancels both directions.
func (s *Scheduler) CancelAll() {
	s.cancel(DirectionEnterCombat)
	s.cancel(DirectionExitCombat)
}

// EnterPending returns true while an enter-combat transition is armed.
func (s *Scheduler) EnterPending() bool {
	return s.Pending(DirectionEnterCombat)
}

// ExitPending returns true while an exit-combat transition is armed.
func (s *Scheduler) ExitPending() bool {
	return s.Pending(DirectionExitCombat)
}

// Pending returns true while the direction has an armed transition.
func (s *Scheduler) Pending(d Direction) bool {
	return s.tokens[d].Pending()
}

// FireAt returns when the pending transition of d is due.
func (s *Scheduler) FireAt(d Direction) (time.Time, bool) {
	t := s.tokens[d]
	if !t.Pending() {
		return time.Time{}, false
	}
	return t.FireAt(), true
}

// Poll fires due transitions.
func (s *Scheduler) Poll() int {
	return s.queue.Poll()
}

func (s *Scheduler) schedule(d Direction, delay time.Duration, onFire func()) bool {
	if s.Pending(d) {
		return false
	}

	var tok *Token
	tok = s.queue.Schedule(delay, func() {
		// Free the slot first so the callback may re-arm this direction.
		if s.tokens[d] == tok {
			s.tokens[d] = nil
		}
		zlog.Debug().Msgf("debounce: transition fired: direction=%s", d)
		if onFire != nil {
			onFire()
		}
	})
	s.tokens[d] = tok

	zlog.Debug().Msgf("debounce: transition scheduled: direction=%s delay=%v", d, delay)
	return true
}

func (s *Scheduler) cancel(d Direction) bool {
	t := s.tokens[d]
	s.tokens[d] = nil
	if !t.Cancel() {
		return false
	}
	zlog.Debug().Msgf("debounce: transition cancelled: direction=%s", d)
	return true
}
