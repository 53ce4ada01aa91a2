// Package ebitensink plays tracks through an Ebitengine audio context.
//
// Ebitengine players report nothing when they reach the end of a stream, so
// Poll compares each player that was started against IsPlaying.
package ebitensink

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/combatbgm/internal/domain/track"
	"github.com/osa030/combatbgm/internal/infra/config"
)

// ErrUnsupportedFormat is returned by Load for files no decoder handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Config holds the audio context settings.
type Config struct {
	SampleRate int `mapstructure:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
}

// Sink wraps the process-wide audio context. It is not safe for concurrent use.
type Sink struct {
	context *audio.Context
	handles []*Handle
}

var _ track.Sink = (*Sink)(nil)

// New returns a sink on the current audio context, creating one if needed.
func New(settings map[string]any) (*Sink, error) {
	var cfg Config
	if err := config.DecodeSettings(settings, &cfg); err != nil {
		return nil, errors.Wrap(err, "ebiten sink")
	}

	ctx := audio.CurrentContext()
	if ctx == nil {
		ctx = audio.NewContext(cfg.SampleRate)
	} else if ctx.SampleRate() != cfg.SampleRate {
		zlog.Warn().Msgf("ebiten sink: reusing audio context: sample_rate=%d requested=%d", ctx.SampleRate(), cfg.SampleRate)
	}
	zlog.Info().Msgf("ebiten sink: audio context ready: sample_rate=%d", ctx.SampleRate())
	return &Sink{context: ctx}, nil
}

// Load opens and decodes t.Path at the context sample rate.
func (s *Sink) Load(t track.Track) (track.Handle, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open track %s", t.ID)
	}

	sr := s.context.SampleRate()
	var stream io.ReadSeeker
	switch t.Format() {
	case "ogg":
		stream, err = vorbis.DecodeWithSampleRate(sr, f)
	case "mp3":
		stream, err = mp3.DecodeWithSampleRate(sr, f)
	case "wav":
		stream, err = wav.DecodeWithSampleRate(sr, f)
	default:
		_ = f.Close()
		return nil, errors.Wrapf(ErrUnsupportedFormat, "track %s: %q", t.ID, t.Format())
	}
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "failed to decode track %s", t.ID)
	}

	player, err := s.context.NewPlayer(stream)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "failed to create player for track %s", t.ID)
	}

	h := &Handle{id: t.ID, file: f, player: player}
	s.handles = append(s.handles, h)
	zlog.Debug().Msgf("ebiten sink: track loaded: track=%s format=%s", t.ID, t.Format())
	return h, nil
}

// Poll reports every started player that has stopped by itself.
func (s *Sink) Poll() {
	var done []*Handle
	for _, h := range s.handles {
		if h.started && !h.player.IsPlaying() {
			h.started = false
			h.ended = true
			done = append(done, h)
		}
	}
	for _, h := range done {
		zlog.Debug().Msgf("ebiten sink: track completed: track=%s", h.id)
		if h.onComplete != nil {
			h.onComplete()
		}
	}
}

// Close pauses and releases every player.
func (s *Sink) Close() error {
	var errs error
	for _, h := range s.handles {
		h.started = false
		h.player.Pause()
		if err := h.player.Close(); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "track %s", h.id))
		}
		if err := h.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "track %s", h.id))
		}
	}
	s.handles = nil
	return errs
}

// Handle is an Ebitengine player.
type Handle struct {
	id         string
	file       *os.File
	player     *audio.Player
	started    bool // Play was called and the player has not been paused or stopped since
	ended      bool
	onComplete func()
}

var _ track.Handle = (*Handle)(nil)

func (h *Handle) ID() string { return h.id }

// Play resumes the player. A finished player starts over.
func (h *Handle) Play() {
	if h.ended {
		h.rewind()
		h.ended = false
	}
	h.player.Play()
	h.started = true
}

func (h *Handle) Pause() {
	h.started = false
	h.player.Pause()
}

func (h *Handle) Stop() {
	h.started = false
	h.ended = false
	h.player.Pause()
	h.rewind()
}

func (h *Handle) SetVolume(v float64) { h.player.SetVolume(v) }

func (h *Handle) IsPlaying() bool { return h.player.IsPlaying() }

func (h *Handle) OnCompletion(fn func()) { h.onComplete = fn }

func (h *Handle) rewind() {
	if err := h.player.Rewind(); err != nil {
		zlog.Warn().Msgf("ebiten sink: failed to rewind: track=%s error=%v", h.id, err)
	}
}
