// Package music provides the music state shared by the soundtrack components.
package music

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// State represents which music is audible.
type State int

const (
	StateSilent State = iota // Nothing is playing
	StateMenu                // Menu track loops
	StateGame                // Exploration playlist
	StateBattle              // Combat playlist
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateSilent:
		return "SILENT"
	case StateMenu:
		return "MENU"
	case StateGame:
		return "GAME"
	case StateBattle:
		return "BATTLE"
	default:
		return "UNKNOWN"
	}
}

// HasPlaylist reports whether the state plays from a multi-track playlist.
func (s State) HasPlaylist() bool {
	return s == StateGame || s == StateBattle
}

// ParseState parses a state name (case-insensitive).
func ParseState(name string) (State, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "SILENT":
		return StateSilent, nil
	case "MENU":
		return StateMenu, nil
	case "GAME":
		return StateGame, nil
	case "BATTLE":
		return StateBattle, nil
	default:
		return StateSilent, errors.Newf("unknown music state: %q", name)
	}
}
