// Package beepsink plays tracks through the gopxl/beep speaker.
package beepsink

import (
	"math"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/combatbgm/internal/domain/track"
	"github.com/osa030/combatbgm/internal/infra/config"
)

// ErrUnsupportedFormat is returned by Load for files no decoder handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Config holds the speaker settings.
type Config struct {
	SampleRate int `mapstructure:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs   int `mapstructure:"buffer_ms" default:"100" validate:"gte=10,lte=1000"`
}

// Sink owns the speaker. Beep runs end-of-stream callbacks on its mixer
// goroutine, so they are queued and replayed from Poll.
type Sink struct {
	sampleRate beep.SampleRate

	mu       sync.Mutex
	handles  []*Handle
	finished []finish
	closed   bool
}

type finish struct {
	handle     *Handle
	generation uint64
}

var _ track.Sink = (*Sink)(nil)

// New initializes the speaker.
func New(settings map[string]any) (*Sink, error) {
	var cfg Config
	if err := config.DecodeSettings(settings, &cfg); err != nil {
		return nil, errors.Wrap(err, "beep sink")
	}
	zlog.Debug().Msgf("beep sink config: %+v", cfg)

	sr := beep.SampleRate(cfg.SampleRate)
	if err := speaker.Init(sr, sr.N(time.Duration(cfg.BufferMs)*time.Millisecond)); err != nil {
		return nil, errors.Wrap(err, "failed to initialize speaker")
	}
	zlog.Info().Msgf("beep sink: speaker initialized: sample_rate=%d buffer_ms=%d", cfg.SampleRate, cfg.BufferMs)
	return &Sink{sampleRate: sr}, nil
}

// Load opens and decodes t.Path. The file stays open until Close.
func (s *Sink) Load(t track.Track) (track.Handle, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open track %s", t.ID)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch t.Format() {
	case "ogg":
		streamer, format, err = vorbis.Decode(f)
	case "mp3":
		streamer, format, err = mp3.Decode(f)
	case "wav":
		streamer, format, err = wav.Decode(f)
	case "flac":
		streamer, format, err = flac.Decode(f)
	default:
		_ = f.Close()
		return nil, errors.Wrapf(ErrUnsupportedFormat, "track %s: %q", t.ID, t.Format())
	}
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "failed to decode track %s", t.ID)
	}

	h := &Handle{
		sink:     s,
		id:       t.ID,
		file:     f,
		streamer: streamer,
		format:   format,
		level:    1,
	}
	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()

	zlog.Debug().Msgf("beep sink: track loaded: track=%s sample_rate=%d duration=%v",
		t.ID, format.SampleRate, format.SampleRate.D(streamer.Len()))
	return h, nil
}

// Poll runs the completion callbacks queued by the mixer. Completions of a
// run that was stopped or restarted since are dropped.
func (s *Sink) Poll() {
	s.mu.Lock()
	pending := s.finished
	s.finished = nil

	var callbacks []func()
	for _, f := range pending {
		h := f.handle
		if f.generation != h.generation || !h.playing {
			continue
		}
		h.playing = false
		h.ctrl = nil
		if h.onComplete != nil {
			callbacks = append(callbacks, h.onComplete)
		}
	}
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// Close clears the speaker and releases every decoder.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	speaker.Clear()

	var errs error
	for _, h := range handles {
		if err := h.streamer.Close(); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "track %s", h.id))
		}
		// Some decoders close the file themselves.
		if err := h.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "track %s", h.id))
		}
	}
	speaker.Close()
	return errs
}

// queue is called by the mixer with the speaker lock held.
func (s *Sink) queue(h *Handle, generation uint64) {
	s.mu.Lock()
	s.finished = append(s.finished, finish{handle: h, generation: generation})
	s.mu.Unlock()
}

// Handle is a decoded track.
//
// Lock order: never hold Sink.mu while taking the speaker lock, since the
// mixer takes Sink.mu from inside it.
type Handle struct {
	sink     *Sink
	id       string
	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format

	// Guarded by sink.mu
	ctrl       *beep.Ctrl
	volume     *effects.Volume
	level      float64
	playing    bool
	generation uint64
	onComplete func()
}

var _ track.Handle = (*Handle)(nil)

func (h *Handle) ID() string { return h.id }

// Play resumes a paused run or starts a new one from the beginning.
func (h *Handle) Play() {
	h.sink.mu.Lock()
	if h.sink.closed || h.playing {
		h.sink.mu.Unlock()
		return
	}
	if ctrl := h.ctrl; ctrl != nil {
		h.playing = true
		h.sink.mu.Unlock()

		speaker.Lock()
		ctrl.Paused = false
		speaker.Unlock()
		return
	}

	h.generation++
	gen := h.generation
	level := h.level
	h.sink.mu.Unlock()

	speaker.Lock()
	if err := h.streamer.Seek(0); err != nil {
		zlog.Warn().Msgf("beep sink: failed to rewind: track=%s error=%v", h.id, err)
	}
	speaker.Unlock()

	var s beep.Streamer = h.streamer
	if h.format.SampleRate != h.sink.sampleRate {
		s = beep.Resample(4, h.format.SampleRate, h.sink.sampleRate, s)
	}
	ctrl := &beep.Ctrl{Streamer: s}
	vol := &effects.Volume{Streamer: ctrl, Base: 2, Volume: levelToVolume(level), Silent: level <= 0}

	h.sink.mu.Lock()
	h.ctrl = ctrl
	h.volume = vol
	h.playing = true
	h.sink.mu.Unlock()

	speaker.Play(beep.Seq(vol, beep.Callback(func() {
		h.sink.queue(h, gen)
	})))
}

func (h *Handle) Pause() {
	h.sink.mu.Lock()
	ctrl := h.ctrl
	if !h.playing || ctrl == nil {
		h.sink.mu.Unlock()
		return
	}
	h.playing = false
	h.sink.mu.Unlock()

	speaker.Lock()
	ctrl.Paused = true
	speaker.Unlock()
}

// Stop ends the current run. The next Play starts from the beginning.
func (h *Handle) Stop() {
	h.sink.mu.Lock()
	ctrl := h.ctrl
	h.ctrl = nil
	h.volume = nil
	h.playing = false
	h.generation++ // the detached run's callback becomes stale
	h.sink.mu.Unlock()

	if ctrl == nil {
		return
	}
	speaker.Lock()
	ctrl.Streamer = nil
	speaker.Unlock()
}

// SetVolume sets the gain in [0, 1], applied on a logarithmic scale.
func (h *Handle) SetVolume(v float64) {
	h.sink.mu.Lock()
	h.level = v
	vol := h.volume
	h.sink.mu.Unlock()

	if vol == nil {
		return
	}
	speaker.Lock()
	vol.Volume = levelToVolume(v)
	vol.Silent = v <= 0
	speaker.Unlock()
}

func (h *Handle) IsPlaying() bool {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return h.playing
}

func (h *Handle) OnCompletion(fn func()) {
	h.sink.mu.Lock()
	h.onComplete = fn
	h.sink.mu.Unlock()
}

// levelToVolume maps a linear level to beep's base-2 exponent:
// 1 -> 0, 0.5 -> -1, 0.25 -> -2. Zero is handled by Silent.
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return -10
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}
