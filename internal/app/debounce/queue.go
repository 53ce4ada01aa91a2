// Package debounce provides cancellable delayed transitions driven by the host tick.
package debounce

import (
	"slices"
	"time"

	"github.com/osa030/combatbgm/internal/infra/clock"
)

type tokenState int

const (
	tokenPending tokenState = iota
	tokenFired
	tokenCancelled
)

// Token is the handle of one scheduled callback.
// A token either fires or is cancelled, never both.
type Token struct {
	seq    uint64
	fireAt time.Time
	fn     func()
	state  tokenState
	queue  *Queue
}

// Cancel prevents the callback from running.
// Returns false if the token already fired or was cancelled.
func (t *Token) Cancel() bool {
	if t == nil || t.state != tokenPending {
		return false
	}
	t.state = tokenCancelled
	t.queue.remove(t)
	return true
}

// Pending returns true until the token fires or is cancelled.
func (t *Token) Pending() bool {
	return t != nil && t.state == tokenPending
}

// FireAt returns the time at which the callback is due.
func (t *Token) FireAt() time.Time {
	return t.fireAt
}

// Queue holds one-shot timers that fire from Poll on the caller's goroutine.
// It is not safe for concurrent use.
type Queue struct {
	clock   clock.Clock
	seq     uint64
	pending []*Token // ordered by fireAt, then seq
}

// NewQueue creates an empty timer queue reading time from c.
func NewQueue(c clock.Clock) *Queue {
	return &Queue{clock: c}
}

// Schedule arms a timer that runs fn once delay has elapsed.
// A negative delay is treated as zero.
func (q *Queue) Schedule(delay time.Duration, fn func()) *Token {
	if delay < 0 {
		delay = 0
	}
	q.seq++
	t := &Token{
		seq:    q.seq,
		fireAt: q.clock.Now().Add(delay),
		fn:     fn,
		queue:  q,
	}

	i, _ := slices.BinarySearchFunc(q.pending, t, compareTokens)
	q.pending = slices.Insert(q.pending, i, t)
	return t
}

// Poll fires every due timer in fire-time order and returns how many fired.
// Timers scheduled by a callback during Poll wait for the next Poll.
func (q *Queue) Poll() int {
	now := q.clock.Now()
	limit := q.seq
	fired := 0

	for len(q.pending) > 0 {
		t := q.pending[0]
		if t.fireAt.After(now) || t.seq > limit {
			break
		}
		q.pending = q.pending[1:]
		t.state = tokenFired
		fired++
		if t.fn != nil {
			t.fn()
		}
	}
	return fired
}

// Len returns the number of pending timers.
func (q *Queue) Len() int {
	return len(q.pending)
}

// CancelAll cancels every pending timer.
func (q *Queue) CancelAll() {
	for _, t := range q.pending {
		t.state = tokenCancelled
	}
	q.pending = nil
}

func (q *Queue) remove(t *Token) {
	q.pending = slices.DeleteFunc(q.pending, func(p *Token) bool { return p == t })
}

func compareTokens(a, b *Token) int {
	if c := a.fireAt.Compare(b.fireAt); c != 0 {
		return c
	}
	switch {
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	default:
		return 0
	}
}
