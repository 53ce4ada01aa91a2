// Package playlist provides the Playlist domain entity and its looping cursor.
package playlist

import (
	"time"

	"github.com/osa030/combatbgm/internal/domain/track"
)

// Playlist represents an ordered list of tracks for one music state.
type Playlist struct {
	Name   string        // Playlist name ("game", "battle")
	Tracks []track.Track // Tracks in play order
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// TotalDuration returns the total duration of all tracks with a known duration.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range p.Tracks {
		total += t.Duration
	}
	return total
}

// IsEmpty returns true if the playlist has no tracks.
func (p *Playlist) IsEmpty() bool {
	return len(p.Tracks) == 0
}
