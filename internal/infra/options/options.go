// Package options provides the player's global music volume.
package options

import (
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	zlog "github.com/rs/zerolog/log"
)

// DefaultRelPath is the options file location below the XDG config home.
const DefaultRelPath = "combatbgm/options.toml"

// Static is a fixed music volume.
type Static float64

// MusicVolume returns the volume clamped to [0, 1].
func (s Static) MusicVolume() float64 {
	return clamp(float64(s))
}

// Changed always reports false.
func (Static) Changed() bool { return false }

// Options mirrors the options file.
//
//	music_volume = 0.8
//	muted = false
type Options struct {
	MusicVolume *float64 `koanf:"music_volume"`
	Muted       bool     `koanf:"muted"`
}

// DefaultPath returns the options file path under the XDG config home,
// creating its directory.
func DefaultPath() (string, error) {
	path, err := xdg.ConfigFile(DefaultRelPath)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve options file path")
	}
	return path, nil
}

// FileProvider reads the music volume from a TOML file and optionally
// reloads it when the file changes. MusicVolume and Changed may be called
// from any goroutine.
type FileProvider struct {
	path     string
	fallback float64

	volume  atomic.Uint64 // math.Float64bits
	changed atomic.Bool

	mu      sync.Mutex
	watched *file.File
}

// NewFileProvider loads the options file at path, or at DefaultPath when path
// is empty. A missing file is not an error: fallback is used until it appears.
func NewFileProvider(path string, fallback float64) (*FileProvider, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	p := &FileProvider{path: path, fallback: clamp(fallback)}
	p.volume.Store(math.Float64bits(p.fallback))
	if err := p.Load(); err != nil {
		return nil, err
	}
	p.changed.Store(false)
	return p, nil
}

// Path returns the options file path.
func (p *FileProvider) Path() string {
	return p.path
}

// MusicVolume returns the current volume in [0, 1].
func (p *FileProvider) MusicVolume() float64 {
	return math.Float64frombits(p.volume.Load())
}

// Changed reports whether the volume changed since the last call.
func (p *FileProvider) Changed() bool {
	return p.changed.Swap(false)
}

// Load re-reads the options file.
func (p *FileProvider) Load() error {
	v := p.fallback

	if _, err := os.Stat(p.path); err == nil {
		k := koanf.New(".")
		if err := k.Load(file.Provider(p.path), toml.Parser()); err != nil {
			return errors.Wrapf(err, "failed to load options file %s", p.path)
		}
		var opts Options
		if err := k.Unmarshal("", &opts); err != nil {
			return errors.Wrapf(err, "failed to decode options file %s", p.path)
		}
		if opts.MusicVolume != nil {
			v = clamp(*opts.MusicVolume)
		}
		if opts.Muted {
			v = 0
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to stat options file %s", p.path)
	}

	old := math.Float64frombits(p.volume.Swap(math.Float64bits(v)))
	if old != v {
		p.changed.Store(true)
		zlog.Debug().Msgf("options: music volume changed: from=%.2f to=%.2f", old, v)
	}
	return nil
}

// Watch reloads the file whenever it changes. The file must exist.
func (p *FileProvider) Watch() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watched != nil {
		return nil
	}

	f := file.Provider(p.path)
	err := f.Watch(func(event interface{}, err error) {
		if err != nil {
			zlog.Warn().Msgf("options: watch error: path=%s error=%v", p.path, err)
			return
		}
		if err := p.Load(); err != nil {
			zlog.Warn().Msgf("options: reload failed: %v", err)
		}
	})
	if err != nil {
		return errors.Wrapf(err, "failed to watch options file %s", p.path)
	}
	p.watched = f

	zlog.Debug().Msgf("options: watching: path=%s", p.path)
	return nil
}

// Close stops watching.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watched == nil {
		return nil
	}
	err := p.watched.Unwatch()
	p.watched = nil
	return err
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
