// Package signal provides the per-tick combat signal and host commands
// that drive a soundtrack machine.
package signal

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/combatbgm/internal/domain/music"
)

// ErrUnknownAction is returned when an action name cannot be parsed.
var ErrUnknownAction = errors.New("unknown action")

// Source is sampled once per tick before the machine is updated.
type Source interface {
	// Sample returns the frame for the given time since the session started.
	Sample(elapsed time.Duration) (Frame, error)
}

// Finite is implemented by sources that end.
type Finite interface {
	// Duration returns the total length; zero means unbounded.
	Duration() time.Duration
}

// Frame is the host input for one tick.
type Frame struct {
	Threat  bool
	Actions []Action // Applied in order before the tick
}

// ActionKind is a host command issued outside the threat signal.
type ActionKind int

const (
	ActionSwitch         ActionKind = iota // Forced transition to Action.State
	ActionAddThreat                        // Weighted threat entered
	ActionRemoveThreat                     // Weighted threat left
	ActionPause                            // Game paused
	ActionResume                           // Game resumed
	ActionResetVolume                      // Options changed
	ActionResetPlaylists                   // New game
)

// String returns the string representation of the action kind.
func (k ActionKind) String() string {
	switch k {
	case ActionSwitch:
		return "switch"
	case ActionAddThreat:
		return "add_threat"
	case ActionRemoveThreat:
		return "remove_threat"
	case ActionPause:
		return "pause"
	case ActionResume:
		return "resume"
	case ActionResetVolume:
		return "reset_volume"
	case ActionResetPlaylists:
		return "reset_playlists"
	default:
		return "unknown"
	}
}

// ParseActionKind parses an action name.
func ParseActionKind(name string) (ActionKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "switch":
		return ActionSwitch, nil
	case "add_threat":
		return ActionAddThreat, nil
	case "remove_threat":
		return ActionRemoveThreat, nil
	case "pause":
		return ActionPause, nil
	case "resume":
		return ActionResume, nil
	case "reset_volume":
		return ActionResetVolume, nil
	case "reset_playlists":
		return ActionResetPlaylists, nil
	default:
		return 0, errors.Wrapf(ErrUnknownAction, "%q", name)
	}
}

// Action is one host command.
type Action struct {
	Kind   ActionKind
	State  music.State // ActionSwitch
	Weight int         // ActionAddThreat, ActionRemoveThreat
}

// Switch returns a forced transition action.
func Switch(s music.State) Action {
	return Action{Kind: ActionSwitch, State: s}
}

// NewAction builds an action from its textual parts.
func NewAction(kind, state string, weight int) (Action, error) {
	k, err := ParseActionKind(kind)
	if err != nil {
		return Action{}, err
	}

	a := Action{Kind: k}
	switch k {
	case ActionSwitch:
		s, err := music.ParseState(state)
		if err != nil {
			return Action{}, errors.Wrap(err, "switch action")
		}
		a.State = s
	case ActionAddThreat, ActionRemoveThreat:
		if weight <= 0 {
			return Action{}, errors.Newf("%s action: weight must be positive: %d", k, weight)
		}
		a.Weight = weight
	}
	return a, nil
}

func (a Action) String() string {
	switch a.Kind {
	case ActionSwitch:
		return a.Kind.String() + ":" + a.State.String()
	case ActionAddThreat, ActionRemoveThreat:
		return a.Kind.String() + ":" + strconv.Itoa(a.Weight)
	default:
		return a.Kind.String()
	}
}
