package playlist

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/combatbgm/internal/domain/track"
)

// ErrEmptyPlaylist is returned when a cursor is built over no tracks.
var ErrEmptyPlaylist = errors.New("playlist is empty")

// Cursor tracks the position within a looping sequence of loaded tracks.
// The index survives state exits, so re-entering a state resumes at the
// track that was last played rather than at the first one.
type Cursor struct {
	name   string
	tracks []track.Handle
	index  int
}

// NewCursor creates a cursor positioned at the first track.
func NewCursor(name string, tracks []track.Handle) (*Cursor, error) {
	if len(tracks) == 0 {
		return nil, errors.Wrapf(ErrEmptyPlaylist, "playlist %s", name)
	}
	for i, h := range tracks {
		if h == nil {
			return nil, errors.Newf("playlist %s: track %d is nil", name, i)
		}
	}

	owned := make([]track.Handle, len(tracks))
	copy(owned, tracks)
	return &Cursor{
		name:   name,
		tracks: owned,
	}, nil
}

// Name returns the playlist name.
func (c *Cursor) Name() string {
	return c.name
}

// Current returns the track at the cursor.
func (c *Cursor) Current() track.Handle {
	return c.tracks[c.index]
}

// Advance moves to the next track, wrapping after the last one, and returns it.
func (c *Cursor) Advance() track.Handle {
	c.index = (c.index + 1) % len(c.tracks)
	return c.tracks[c.index]
}

// Reset moves the cursor back to the first track.
func (c *Cursor) Reset() {
	c.index = 0
}

// Index returns the cursor position.
func (c *Cursor) Index() int {
	return c.index
}

// Len returns the number of tracks.
func (c *Cursor) Len() int {
	return len(c.tracks)
}

// Contains reports whether the handle belongs to this playlist.
func (c *Cursor) Contains(h track.Handle) bool {
	for _, t := range c.tracks {
		if t == h {
			return true
		}
	}
	return false
}
