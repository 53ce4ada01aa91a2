package soundtrack

import (
	"time"

	"github.com/osa030/combatbgm/internal/app/debounce"
	"github.com/osa030/combatbgm/internal/domain/music"
)

// EventType represents a machine event type.
type EventType int

const (
	EventStateChanged        EventType = iota // Music state changed
	EventTrackStarted                         // A track started playing
	EventTransitionScheduled                  // A debounced transition was armed
	EventTransitionCancelled                  // A debounced transition was cancelled
	EventTrackSkippedStale                    // A completion from a non-current track was ignored
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStateChanged:
		return "state_changed"
	case EventTrackStarted:
		return "track_started"
	case EventTransitionScheduled:
		return "transition_scheduled"
	case EventTransitionCancelled:
		return "transition_cancelled"
	case EventTrackSkippedStale:
		return "track_skipped_stale"
	default:
		return "unknown"
	}
}

// Event represents a machine event.
type Event struct {
	Type      EventType
	At        time.Time
	From      music.State        // EventStateChanged
	State     music.State        // State after the event
	TrackID   string             // EventTrackStarted, EventTrackSkippedStale
	Direction debounce.Direction // EventTransitionScheduled, EventTransitionCancelled
}
