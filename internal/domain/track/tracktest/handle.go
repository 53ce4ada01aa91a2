// Package tracktest provides recording track handles for tests.
package tracktest

import (
	"fmt"

	"github.com/osa030/combatbgm/internal/domain/track"
)

// Op names recorded by Handle.
const (
	OpPlay      = "play"
	OpPause     = "pause"
	OpStop      = "stop"
	OpSetVolume = "volume"
)

// Call is one recorded handle operation.
type Call struct {
	Track  string
	Op     string
	Volume float64 // OpSetVolume only
}

func (c Call) String() string {
	if c.Op == OpSetVolume {
		return fmt.Sprintf("%s:%s(%.2f)", c.Track, c.Op, c.Volume)
	}
	return c.Track + ":" + c.Op
}

// Log records calls across handles in order.
type Log struct {
	Calls []Call
}

// Ops returns the operations recorded for the track ID.
func (l *Log) Ops(id string) []string {
	var ops []string
	for _, c := range l.Calls {
		if c.Track == id {
			ops = append(ops, c.Op)
		}
	}
	return ops
}

// Count returns how many times op was recorded for the track ID.
func (l *Log) Count(id, op string) int {
	n := 0
	for _, c := range l.Calls {
		if c.Track == id && c.Op == op {
			n++
		}
	}
	return n
}

// Reset drops all recorded calls.
func (l *Log) Reset() {
	l.Calls = nil
}

// Handle is a track.Handle that records its calls and finishes on demand.
type Handle struct {
	id         string
	log        *Log
	playing    bool
	volume     float64
	onComplete func()
}

var _ track.Handle = (*Handle)(nil)

// NewHandle creates a handle recording into log. log may be nil.
func NewHandle(id string, log *Log) *Handle {
	if log == nil {
		log = &Log{}
	}
	return &Handle{id: id, log: log, volume: 1}
}

// NewHandles creates one handle per ID sharing log.
func NewHandles(log *Log, ids ...string) []*Handle {
	hs := make([]*Handle, len(ids))
	for i, id := range ids {
		hs[i] = NewHandle(id, log)
	}
	return hs
}

// AsTracks converts handles to the track.Handle interface.
func AsTracks(hs []*Handle) []track.Handle {
	out := make([]track.Handle, len(hs))
	for i, h := range hs {
		out[i] = h
	}
	return out
}

func (h *Handle) ID() string { return h.id }

func (h *Handle) Play() {
	h.playing = true
	h.record(Call{Op: OpPlay})
}

func (h *Handle) Pause() {
	h.playing = false
	h.record(Call{Op: OpPause})
}

func (h *Handle) Stop() {
	h.playing = false
	h.record(Call{Op: OpStop})
}

func (h *Handle) SetVolume(v float64) {
	h.volume = v
	h.record(Call{Op: OpSetVolume, Volume: v})
}

func (h *Handle) IsPlaying() bool { return h.playing }

func (h *Handle) OnCompletion(fn func()) { h.onComplete = fn }

// Volume returns the last volume set.
func (h *Handle) Volume() float64 { return h.volume }

// Finish ends playback and invokes the completion callback.
func (h *Handle) Finish() {
	h.playing = false
	if h.onComplete != nil {
		h.onComplete()
	}
}

func (h *Handle) record(c Call) {
	c.Track = h.id
	h.log.Calls = append(h.log.Calls, c)
}
