// Package track provides the Track domain entity and the audio sink port.
package track

import (
	"path/filepath"
	"strings"
	"time"
)

// Track represents a music asset that can be loaded into an audio sink.
// Contains only descriptive information; playback state lives in a Handle.
type Track struct {
	ID       string        `yaml:"id" mapstructure:"id" validate:"required"` // Asset ID (e.g. "engine:dreadnaught")
	Title    string        `yaml:"title" mapstructure:"title"`               // Human-readable title
	Path     string        `yaml:"path" mapstructure:"path"`                 // File path of the encoded audio
	Duration time.Duration `yaml:"duration" mapstructure:"duration"`         // Optional duration hint (headless playback)
}

// DisplayName returns the title, falling back to the ID.
func (t *Track) DisplayName() string {
	if t.Title != "" {
		return t.Title
	}
	return t.ID
}

// Format returns the lower-case file extension without the dot ("ogg", "mp3", ...).
func (t *Track) Format() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(t.Path)), ".")
}

// Handle is a loaded, playable track owned by an audio sink.
type Handle interface {
	// ID returns the ID of the track the handle was loaded from.
	ID() string
	Play()
	Pause()
	Stop()
	// SetVolume sets the gain in [0, 1].
	SetVolume(v float64)
	IsPlaying() bool
	// OnCompletion installs the callback invoked when playback reaches the end.
	// Installing a new callback replaces the previous one. Sinks invoke it from
	// Sink.Poll, never from an audio goroutine.
	OnCompletion(fn func())
}

// Sink loads tracks and delivers their completion callbacks.
type Sink interface {
	// Load prepares a track for playback.
	Load(t Track) (Handle, error)
	// Poll delivers pending completion callbacks on the caller's goroutine.
	Poll()
	// Close stops all playback and releases device resources.
	Close() error
}
