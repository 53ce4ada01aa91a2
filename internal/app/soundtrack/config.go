package soundtrack

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/combatbgm/internal/app/playback"
	"github.com/osa030/combatbgm/internal/domain/track"
	"github.com/osa030/combatbgm/internal/infra/clock"
)

// ErrInvalidConfig is returned by New when the tuning or the playlists are unusable.
var ErrInvalidConfig = errors.New("invalid soundtrack config")

// Config holds the tuning constants.
type Config struct {
	EnterCombatDelay time.Duration // GAME -> BATTLE debounce
	ExitCombatDelay  time.Duration // BATTLE -> GAME debounce
	CombatThreshold  int           // Bucket value at which combat music is due
	TrackWeight      int           // Bucket contribution of one threat tick
}

// DefaultConfig returns the stock tuning: 2s on, 5s off, threshold 1, weight 1.
func DefaultConfig() Config {
	return Config{
		EnterCombatDelay: 2 * time.Second,
		ExitCombatDelay:  5 * time.Second,
		CombatThreshold:  1,
		TrackWeight:      1,
	}
}

// Validate checks that every constant is positive.
func (c Config) Validate() error {
	if c.EnterCombatDelay <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "enter combat delay must be positive: %v", c.EnterCombatDelay)
	}
	if c.ExitCombatDelay <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "exit combat delay must be positive: %v", c.ExitCombatDelay)
	}
	if c.CombatThreshold <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "combat threshold must be positive: %d", c.CombatThreshold)
	}
	if c.TrackWeight <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "track weight must be positive: %d", c.TrackWeight)
	}
	return nil
}

// VolumeSource provides the global music volume multiplier.
// It is read on every play and volume reset.
type VolumeSource interface {
	MusicVolume() float64
}

// Deps holds the collaborators of a Machine.
type Deps struct {
	Menu    track.Handle    // Looping menu track
	Game    []track.Handle  // Ambient playlist
	Battle  []track.Handle  // Combat playlist
	Options VolumeSource    // Defaults to full volume
	Clock   clock.Clock     // Defaults to the wall clock
	Sink    playback.Poller // Polled before completions are dispatched; optional
}

type fullVolume struct{}

func (fullVolume) MusicVolume() float64 { return 1 }
