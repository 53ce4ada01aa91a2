// Package library resolves configured playlists into tracks and loads them
// into an audio sink.
package library

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/combatbgm/internal/domain/track"
)

// ErrNoTracks is returned when a playlist resolves to no tracks.
var ErrNoTracks = errors.New("no tracks")

// Provider is the interface for track providers.
// Different implementations list tracks through various strategies
// (e.g., a static list, a directory scan).
type Provider interface {
	// Tracks returns the provider's tracks in playback order.
	Tracks(ctx context.Context) ([]track.Track, error)

	// Name returns the provider type (used in config).
	Name() string
}
