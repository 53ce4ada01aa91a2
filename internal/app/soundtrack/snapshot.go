package soundtrack

import (
	"github.com/osa030/combatbgm/internal/app/playback"
	"github.com/osa030/combatbgm/internal/domain/music"
)

// Snapshot is a read-only view of the machine for diagnostics and rendering.
type Snapshot struct {
	State         music.State
	Bucket        int
	Threshold     int
	EnterPending  bool
	ExitPending   bool
	GameIndex     int
	BattleIndex   int
	CurrentTrack  string // Empty when nothing is playing
	PlaybackState playback.State
	Volume        float64
}

// Snapshot returns the current view of the machine.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		State:         m.state,
		Bucket:        m.acc.Bucket(),
		Threshold:     m.acc.Threshold(),
		EnterPending:  m.sched.EnterPending(),
		ExitPending:   m.sched.ExitPending(),
		GameIndex:     m.game.Index(),
		BattleIndex:   m.battle.Index(),
		PlaybackState: m.ctrl.State(),
		Volume:        m.ctrl.Volume(),
	}
	if h, ok := m.ctrl.Current(); ok {
		s.CurrentTrack = h.ID()
	}
	return s
}
