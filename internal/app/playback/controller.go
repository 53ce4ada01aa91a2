package playback

import (
	"math"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/combatbgm/internal/domain/track"
)

// Errors
var (
	ErrNoTrack    = errors.New("no track playing")
	ErrNotPlaying = errors.New("not playing")
	ErrNotPaused  = errors.New("not paused")
)

// Poller delivers pending sink notifications on the caller's goroutine.
// track.Sink satisfies it.
type Poller interface {
	Poll()
}

// Controller owns the single track that is audible through it.
//
// Completion callbacks installed on handles are queued and handed to the
// OnTrackFinished handler from Poll, never from inside Play or Stop.
// It is not safe for concurrent use.
type Controller struct {
	poller  Poller
	current track.Handle
	state   State
	volume  float64

	// Completions waiting for Poll
	finished   []track.Handle
	onFinished func(track.Handle)
}

// NewController creates a controller. poller may be nil when the sink
// invokes completion callbacks by itself on the host goroutine.
func NewController(poller Poller) *Controller {
	return &Controller{
		poller: poller,
		state:  StateIdle,
		volume: 1,
	}
}

// OnTrackFinished registers the handler that receives completions from Poll.
// Completions of handles that are no longer current are reported too.
func (c *Controller) OnTrackFinished(fn func(track.Handle)) {
	c.onFinished = fn
}

// Play stops the previous track if it differs from h, then sets the volume
// and starts h.
func (c *Controller) Play(h track.Handle, volume float64) {
	if h == nil {
		return
	}

	if c.current != nil && c.current != h {
		zlog.Debug().Msgf("playback: stopping previous track: track=%s", c.current.ID())
		c.current.Stop()
	}

	c.current = h
	c.volume = clampVolume(volume)
	h.SetVolume(c.volume)
	h.OnCompletion(func() {
		c.finished = append(c.finished, h)
	})
	h.Play()
	c.state = StatePlaying

	zlog.Debug().Msgf("playback: track started: track=%s volume=%.2f", h.ID(), c.volume)
}

// Stop halts playback and clears the current track.
func (c *Controller) Stop() {
	if c.current == nil {
		return
	}
	zlog.Debug().Msgf("playback: track stopped: track=%s", c.current.ID())
	c.current.Stop()
	c.current = nil
	c.state = StateIdle
}

// Pause suspends the current track without clearing it.
func (c *Controller) Pause() error {
	if c.current == nil {
		return ErrNoTrack
	}
	if c.state != StatePlaying {
		return ErrNotPlaying
	}
	c.current.Pause()
	c.state = StatePaused
	return nil
}

// Resume continues a paused track.
func (c *Controller) Resume() error {
	if c.current == nil {
		return ErrNoTrack
	}
	if c.state != StatePaused {
		return ErrNotPaused
	}
	c.current.Play()
	c.state = StatePlaying
	return nil
}

// SetVolume adjusts the gain of the current track immediately.
// The value is clamped to [0, 1] and kept for the next Play.
func (c *Controller) SetVolume(v float64) {
	c.volume = clampVolume(v)
	if c.current != nil {
		c.current.SetVolume(c.volume)
	}
}

// Current returns the current track.
func (c *Controller) Current() (track.Handle, bool) {
	return c.current, c.current != nil
}

// IsCurrent returns true if h is the current track.
func (c *Controller) IsCurrent(h track.Handle) bool {
	return h != nil && c.current == h
}

// State returns the playback state.
func (c *Controller) State() State {
	return c.state
}

// Volume returns the last applied volume.
func (c *Controller) Volume() float64 {
	return c.volume
}

// Poll polls the sink and dispatches queued completions in arrival order.
// Returns the number of completions dispatched.
func (c *Controller) Poll() int {
	if c.poller != nil {
		c.poller.Poll()
	}

	n := 0
	for len(c.finished) > 0 {
		h := c.finished[0]
		c.finished = c.finished[1:]
		n++
		if c.onFinished != nil {
			c.onFinished(h)
		}
	}
	return n
}

func clampVolume(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
