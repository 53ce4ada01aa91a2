// Package soundtrack decides which music state is audible and drives the
// debounced transitions between the looping playlists.
package soundtrack

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/combatbgm/internal/app/debounce"
	"github.com/osa030/combatbgm/internal/app/intensity"
	"github.com/osa030/combatbgm/internal/app/playback"
	"github.com/osa030/combatbgm/internal/domain/music"
	"github.com/osa030/combatbgm/internal/domain/playlist"
	"github.com/osa030/combatbgm/internal/domain/track"
	"github.com/osa030/combatbgm/internal/infra/clock"
)

const eventBufferSize = 64

// Machine is the music state machine of one game session.
//
// All methods must be called from the host goroutine. Completions and due
// transitions are processed inside Update, in this order: completions,
// signal accumulation, scheduling and cancellation, due transitions.
type Machine struct {
	cfg     Config
	clock   clock.Clock
	options VolumeSource

	state  music.State
	menu   track.Handle
	game   *playlist.Cursor
	battle *playlist.Cursor

	acc   *intensity.Accumulator
	sched *debounce.Scheduler
	ctrl  *playback.Controller

	// Bucket amount added by threat ticks since the signal was last clear
	signalContribution int

	events chan Event
	closed bool
}

// New creates a machine in SILENT with both cursors at the first track.
func New(cfg Config, deps Deps) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Menu == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "menu track is required")
	}

	game, err := playlist.NewCursor("game", deps.Game)
	if err != nil {
		return nil, errors.Wrap(errors.Mark(err, ErrInvalidConfig), "game playlist")
	}
	battle, err := playlist.NewCursor("battle", deps.Battle)
	if err != nil {
		return nil, errors.Wrap(errors.Mark(err, ErrInvalidConfig), "battle playlist")
	}

	acc, err := intensity.New(cfg.CombatThreshold)
	if err != nil {
		return nil, errors.Wrap(errors.Mark(err, ErrInvalidConfig), "combat threshold")
	}

	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Options == nil {
		deps.Options = fullVolume{}
	}

	m := &Machine{
		cfg:     cfg,
		clock:   deps.Clock,
		options: deps.Options,
		state:   music.StateSilent,
		menu:    deps.Menu,
		game:    game,
		battle:  battle,
		acc:     acc,
		sched:   debounce.NewScheduler(deps.Clock),
		ctrl:    playback.NewController(deps.Sink),
		events:  make(chan Event, eventBufferSize),
	}
	m.ctrl.OnTrackFinished(m.TrackFinished)

	zlog.Debug().Msgf("soundtrack: machine created: game_tracks=%d battle_tracks=%d threshold=%d weight=%d on_delay=%v off_delay=%v",
		game.Len(), battle.Len(), cfg.CombatThreshold, cfg.TrackWeight, cfg.EnterCombatDelay, cfg.ExitCombatDelay)

	return m, nil
}

// Events returns the event channel. Events are dropped when the buffer is full.
func (m *Machine) Events() <-chan Event {
	return m.events
}

// State returns the current music state.
func (m *Machine) State() music.State {
	return m.state
}

// Update processes one host tick with the current combat signal.
// The signal is only considered in GAME and BATTLE.
func (m *Machine) Update(threatPresent bool) {
	if m.closed {
		return
	}

	m.ctrl.Poll()

	switch m.state {
	case music.StateGame:
		m.updateGame(threatPresent)
	case music.StateBattle:
		m.updateBattle(threatPresent)
	}

	m.sched.Poll()
}

func (m *Machine) updateGame(threat bool) {
	if !threat {
		m.drainSignal()
		m.cancelEnter()
		return
	}
	if m.sched.EnterPending() {
		return
	}

	before := m.acc.Bucket()
	m.acc.Add(m.cfg.TrackWeight)
	m.signalContribution += m.acc.Bucket() - before

	if m.acc.IsAboveThreshold() {
		m.scheduleEnter()
	}
}

func (m *Machine) updateBattle(threat bool) {
	if threat {
		m.cancelExit()
		return
	}
	m.drainSignal()
	if !m.sched.ExitPending() {
		m.scheduleExit()
	}
}

// AddThreat adds a weighted combat contribution, such as an enemy entering
// detection range. In GAME it arms the enter-combat transition once the
// threshold is reached.
func (m *Machine) AddThreat(weight int) {
	if m.closed {
		return
	}
	m.acc.Add(weight)
	m.capSignal()
	zlog.Debug().Msgf("soundtrack: threat added: weight=%d bucket=%d", weight, m.acc.Bucket())

	if m.state == music.StateGame && m.acc.IsAboveThreshold() && !m.sched.EnterPending() {
		m.scheduleEnter()
	}
}

// RemoveThreat withdraws a weighted combat contribution. In GAME a pending
// enter-combat transition is cancelled once the bucket drops below the threshold.
func (m *Machine) RemoveThreat(weight int) {
	if m.closed {
		return
	}
	m.acc.Subtract(weight)
	m.capSignal()
	zlog.Debug().Msgf("soundtrack: threat removed: weight=%d bucket=%d", weight, m.acc.Bucket())

	if m.state == music.StateGame && !m.acc.IsAboveThreshold() {
		m.cancelEnter()
	}
}

// PlayMenuMusic switches to the menu track immediately.
func (m *Machine) PlayMenuMusic() {
	m.force(music.StateMenu)
}

// PlayGameMusic switches to the game playlist immediately, at its cursor.
func (m *Machine) PlayGameMusic() {
	m.force(music.StateGame)
}

// PlayBattleMusic switches to the battle playlist immediately, at its cursor.
func (m *Machine) PlayBattleMusic() {
	m.force(music.StateBattle)
}

// TrackFinished handles the completion of h. Completions of tracks that are
// no longer current are ignored.
func (m *Machine) TrackFinished(h track.Handle) {
	if m.closed || h == nil {
		return
	}
	if !m.ctrl.IsCurrent(h) {
		zlog.Debug().Msgf("soundtrack: stale completion ignored: track=%s state=%s", h.ID(), m.state)
		m.emit(Event{Type: EventTrackSkippedStale, TrackID: h.ID()})
		return
	}

	switch m.state {
	case music.StateGame:
		m.play(m.game.Advance())
	case music.StateBattle:
		m.play(m.battle.Advance())
	case music.StateMenu:
		m.play(m.menu)
	}
}

// Stop silences the music and cancels pending transitions. Cursors are kept.
func (m *Machine) Stop() {
	if m.closed {
		return
	}
	m.cancelAll()
	m.drainSignal()
	m.ctrl.Stop()
	m.setState(music.StateSilent)
}

// Pause suspends the current track without changing the state.
func (m *Machine) Pause() {
	if m.closed {
		return
	}
	if err := m.ctrl.Pause(); err != nil {
		zlog.Debug().Msgf("soundtrack: pause ignored: %v", err)
	}
}

// Resume continues a paused track.
func (m *Machine) Resume() {
	if m.closed {
		return
	}
	if err := m.ctrl.Resume(); err != nil {
		zlog.Debug().Msgf("soundtrack: resume ignored: %v", err)
	}
}

// ResetVolume re-reads the music volume and applies it to the current track.
func (m *Machine) ResetVolume() {
	if m.closed {
		return
	}
	v := m.options.MusicVolume()
	m.ctrl.SetVolume(v)
	zlog.Debug().Msgf("soundtrack: volume reset: volume=%.2f", m.ctrl.Volume())
}

// ResetPlaylists moves both cursors back to their first track.
// The current track keeps playing.
func (m *Machine) ResetPlaylists() {
	if m.closed {
		return
	}
	m.game.Reset()
	m.battle.Reset()
}

// Close stops the music, cancels pending transitions and closes the event
// channel. It is safe to call more than once.
func (m *Machine) Close() {
	if m.closed {
		return
	}
	m.Stop()
	m.closed = true
	close(m.events)
	zlog.Debug().Msg("soundtrack: machine closed")
}

func (m *Machine) force(to music.State) {
	if m.closed {
		return
	}
	m.cancelAll()
	m.drainSignal()

	if m.state == to && m.ctrl.IsCurrent(m.trackFor(to)) {
		if m.ctrl.State() == playback.StatePaused {
			m.Resume()
		}
		return
	}
	m.enter(to)
}

// enter switches to a playlist state and plays its current track.
func (m *Machine) enter(to music.State) {
	m.setState(to)
	m.play(m.trackFor(to))
}

func (m *Machine) trackFor(s music.State) track.Handle {
	switch s {
	case music.StateMenu:
		return m.menu
	case music.StateGame:
		return m.game.Current()
	case music.StateBattle:
		return m.battle.Current()
	default:
		return nil
	}
}

func (m *Machine) setState(to music.State) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	zlog.Info().Msgf("soundtrack: state changed: from=%s to=%s", from, to)
	m.emit(Event{Type: EventStateChanged, From: from})
}

func (m *Machine) play(h track.Handle) {
	if h == nil {
		return
	}
	m.ctrl.Play(h, m.options.MusicVolume())
	zlog.Info().Msgf("soundtrack: track started: state=%s track=%s", m.state, h.ID())
	m.emit(Event{Type: EventTrackStarted, TrackID: h.ID()})
}

func (m *Machine) scheduleEnter() {
	if m.sched.ScheduleEnterCombat(m.cfg.EnterCombatDelay, m.onEnterCombat) {
		m.emit(Event{Type: EventTransitionScheduled, Direction: debounce.DirectionEnterCombat})
	}
}

func (m *Machine) scheduleExit() {
	if m.sched.ScheduleExitCombat(m.cfg.ExitCombatDelay, m.onExitCombat) {
		m.emit(Event{Type: EventTransitionScheduled, Direction: debounce.DirectionExitCombat})
	}
}

func (m *Machine) cancelEnter() {
	if m.sched.CancelEnterCombat() {
		m.emit(Event{Type: EventTransitionCancelled, Direction: debounce.DirectionEnterCombat})
	}
}

func (m *Machine) cancelExit() {
	if m.sched.CancelExitCombat() {
		m.emit(Event{Type: EventTransitionCancelled, Direction: debounce.DirectionExitCombat})
	}
}

func (m *Machine) cancelAll() {
	m.cancelEnter()
	m.cancelExit()
}

func (m *Machine) onEnterCombat() {
	if m.state != music.StateGame || !m.acc.IsAboveThreshold() {
		zlog.Debug().Msgf("soundtrack: enter combat dropped: state=%s bucket=%d", m.state, m.acc.Bucket())
		return
	}
	m.enter(music.StateBattle)
}

func (m *Machine) onExitCombat() {
	if m.state != music.StateBattle {
		zlog.Debug().Msgf("soundtrack: exit combat dropped: state=%s", m.state)
		return
	}
	m.enter(music.StateGame)
}

// drainSignal removes what threat ticks added to the bucket.
func (m *Machine) drainSignal() {
	if m.signalContribution == 0 {
		return
	}
	m.acc.Subtract(m.signalContribution)
	m.signalContribution = 0
}

// capSignal keeps the signal share within the bucket after a weighted
// change lowered it, so a later drain cannot remove weighted threats.
func (m *Machine) capSignal() {
	m.signalContribution = min(m.signalContribution, m.acc.Bucket())
}

// emit sends an event without blocking.
func (m *Machine) emit(e Event) {
	if m.closed {
		return
	}
	e.At = m.clock.Now()
	e.State = m.state
	select {
	case m.events <- e:
	default:
		zlog.Debug().Msgf("soundtrack: event dropped: type=%s", e.Type)
	}
}
