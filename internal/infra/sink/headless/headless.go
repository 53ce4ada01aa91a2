// Package headless implements an audio sink that plays nothing. Each handle
// runs a virtual playhead against a clock, so track lengths, pauses and
// completions behave as on a real device.
package headless

import (
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/combatbgm/internal/domain/track"
	"github.com/osa030/combatbgm/internal/infra/clock"
	"github.com/osa030/combatbgm/internal/infra/config"
)

// Config holds the headless sink settings.
type Config struct {
	// Length used for tracks without a duration hint
	DefaultDuration time.Duration `mapstructure:"default_duration" default:"3m" validate:"gt=0"`
}

// Sink is a virtual audio device. It is not safe for concurrent use.
type Sink struct {
	clock   clock.Clock
	config  Config
	handles []*Handle
	closed  bool
}

var _ track.Sink = (*Sink)(nil)

// New creates a headless sink from sink settings.
func New(settings map[string]any, c clock.Clock) (*Sink, error) {
	var cfg Config
	if err := config.DecodeSettings(settings, &cfg); err != nil {
		return nil, errors.Wrap(err, "headless sink")
	}
	if c == nil {
		c = clock.Real{}
	}
	zlog.Debug().Msgf("headless sink config: %+v", cfg)
	return &Sink{clock: c, config: cfg}, nil
}

// Load creates a handle for t.
func (s *Sink) Load(t track.Track) (track.Handle, error) {
	if s.closed {
		return nil, errors.New("headless sink: closed")
	}
	d := t.Duration
	if d <= 0 {
		d = s.config.DefaultDuration
	}
	h := &Handle{sink: s, id: t.ID, duration: d, volume: 1}
	s.handles = append(s.handles, h)
	zlog.Debug().Msgf("headless sink: track loaded: track=%s duration=%v", t.ID, d)
	return h, nil
}

// Poll finishes every handle whose playhead reached the end and runs its
// completion callback.
func (s *Sink) Poll() {
	now := s.clock.Now()

	var done []*Handle
	for _, h := range s.handles {
		if h.playing && h.position(now) >= h.duration {
			h.elapsed = h.duration
			h.playing = false
			done = append(done, h)
		}
	}

	// Callbacks may start other handles.
	for _, h := range done {
		zlog.Debug().Msgf("headless sink: track completed: track=%s", h.id)
		if h.onComplete != nil {
			h.onComplete()
		}
	}
}

// Close stops every handle.
func (s *Sink) Close() error {
	for _, h := range s.handles {
		h.playing = false
	}
	s.closed = true
	return nil
}

// Handle is a virtual playhead.
type Handle struct {
	sink       *Sink
	id         string
	duration   time.Duration
	elapsed    time.Duration // Position when last paused or stopped
	startedAt  time.Time
	playing    bool
	volume     float64
	onComplete func()
}

var _ track.Handle = (*Handle)(nil)

func (h *Handle) ID() string { return h.id }

// Play resumes from the current position. A finished track starts over.
func (h *Handle) Play() {
	if h.playing || h.sink.closed {
		return
	}
	if h.elapsed >= h.duration {
		h.elapsed = 0
	}
	h.startedAt = h.sink.clock.Now()
	h.playing = true
}

func (h *Handle) Pause() {
	if !h.playing {
		return
	}
	h.elapsed = h.position(h.sink.clock.Now())
	h.playing = false
}

// Stop halts playback and rewinds.
func (h *Handle) Stop() {
	h.playing = false
	h.elapsed = 0
}

func (h *Handle) SetVolume(v float64) { h.volume = v }

// Volume returns the last volume set.
func (h *Handle) Volume() float64 { return h.volume }

func (h *Handle) IsPlaying() bool { return h.playing }

func (h *Handle) OnCompletion(fn func()) { h.onComplete = fn }

// Position returns the playhead.
func (h *Handle) Position() time.Duration {
	return h.position(h.sink.clock.Now())
}

// Duration returns the virtual track length.
func (h *Handle) Duration() time.Duration { return h.duration }

func (h *Handle) position(now time.Time) time.Duration {
	if !h.playing {
		return h.elapsed
	}
	p := h.elapsed + now.Sub(h.startedAt)
	if p > h.duration {
		p = h.duration
	}
	return p
}
