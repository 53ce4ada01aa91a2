// Package session runs a soundtrack machine against a signal source.
package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/combatbgm/internal/app/library"
	"github.com/osa030/combatbgm/internal/app/notification"
	"github.com/osa030/combatbgm/internal/app/session/state"
	"github.com/osa030/combatbgm/internal/app/signal"
	"github.com/osa030/combatbgm/internal/app/soundtrack"
	"github.com/osa030/combatbgm/internal/domain/music"
	"github.com/osa030/combatbgm/internal/domain/track"
	"github.com/osa030/combatbgm/internal/infra/clock"
	"github.com/osa030/combatbgm/internal/infra/config"
	"github.com/osa030/combatbgm/internal/infra/options"
	"github.com/osa030/combatbgm/internal/infra/sink"
)

var (
	ErrSessionNotRunning = errors.New("session is not running")
	ErrSessionFinished   = errors.New("session has finished")
)

// Finish reasons
const (
	ReasonCompleted = "completed"
	ReasonStopped   = "stopped"
	ReasonCancelled = "cancelled"
	ReasonFailed    = "failed"
)

// Options provides the music volume and reports changes to it.
type Options interface {
	soundtrack.VolumeSource
	// Changed reports whether the volume changed since the last call.
	Changed() bool
}

// Deps overrides the collaborators NewManager would build from the
// configuration. Nil fields are built. The manager closes the sink and the
// options in Close.
type Deps struct {
	Clock   clock.Clock
	Sink    track.Sink
	Source  signal.Source
	Options Options
}

// Info is a snapshot of the session and its machine.
type Info struct {
	Session    state.Info
	Soundtrack soundtrack.Snapshot
}

// Manager manages one simulation session.
type Manager struct {
	mu sync.Mutex

	// Configuration
	config *config.Config
	tick   time.Duration

	// Components
	stateMgr     *state.Manager
	clock        clock.Clock
	sink         track.Sink
	source       signal.Source
	options      Options
	machine      *soundtrack.Machine
	notification *notification.Manager

	duration  time.Duration // Zero: until stopped
	startedAt time.Time

	// Channels
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once
	closed   bool
}

// NewManager resolves the playlists, loads them into the sink and creates
// the machine.
func NewManager(ctx context.Context, cfg *config.Config, deps Deps) (*Manager, error) {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}

	var err error
	if deps.Source == nil {
		if deps.Source, err = NewSource(cfg.Simulation); err != nil {
			return nil, err
		}
	}
	if deps.Options == nil {
		if deps.Options, err = NewOptions(cfg.Options); err != nil {
			return nil, err
		}
	}
	if deps.Sink == nil {
		if deps.Sink, err = sink.New(cfg.Sink, deps.Clock); err != nil {
			return nil, errors.Wrap(err, "failed to create sink")
		}
	}

	sessionID := uuid.New().String()
	m := &Manager{
		config:       cfg,
		tick:         cfg.Simulation.TickInterval(),
		stateMgr:     state.New(sessionID),
		clock:        deps.Clock,
		sink:         deps.Sink,
		source:       deps.Source,
		options:      deps.Options,
		notification: notification.NewManager(),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	if f, ok := deps.Source.(signal.Finite); ok {
		m.duration = f.Duration()
	}

	if err := m.load(ctx); err != nil {
		m.release()
		return nil, err
	}

	zlog.Info().Msgf("session created: session_id=%s sink=%s tick=%v duration=%v",
		sessionID, cfg.Sink.Type, m.tick, m.duration)
	return m, nil
}

// load builds the playlists and the machine.
func (m *Manager) load(ctx context.Context) error {
	cfg := m.config

	menu, err := m.sink.Load(cfg.Tracks.Menu)
	if err != nil {
		return errors.Wrap(err, "failed to load menu track")
	}

	game, err := m.loadPlaylist(ctx, "game", cfg.Tracks.Game)
	if err != nil {
		return err
	}
	battle, err := m.loadPlaylist(ctx, "battle", cfg.Tracks.Battle)
	if err != nil {
		return err
	}

	m.machine, err = soundtrack.New(soundtrack.Config{
		EnterCombatDelay: cfg.Music.EnterCombatDelay(),
		ExitCombatDelay:  cfg.Music.ExitCombatDelay(),
		CombatThreshold:  cfg.Music.CombatThreshold,
		TrackWeight:      cfg.Music.TrackWeight,
	}, soundtrack.Deps{
		Menu:    menu,
		Game:    game,
		Battle:  battle,
		Options: m.options,
		Clock:   m.clock,
		Sink:    m.sink,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create soundtrack machine")
	}
	return nil
}

func (m *Manager) loadPlaylist(ctx context.Context, name string, pc config.PlaylistConfig) ([]track.Handle, error) {
	pl, err := library.Resolve(ctx, name, pc)
	if err != nil {
		return nil, err
	}
	return library.Load(m.sink, pl)
}

// Start starts the session and plays the initial state.
func (m *Manager) Start() error {
	var events []soundtrack.Event
	defer func() { m.broadcast(events) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if !m.stateMgr.Start(now) {
		if m.stateMgr.GetPhase() == state.PhaseFinished {
			return ErrSessionFinished
		}
		return nil
	}
	m.startedAt = now

	initial, err := music.ParseState(m.config.Simulation.InitialState)
	if err != nil {
		return errors.Wrap(err, "invalid initial state")
	}
	zlog.Info().Msgf("phase changed: phase=RUNNING session_id=%s initial_state=%s", m.stateMgr.GetSessionID(), initial)

	m.switchTo(initial)
	events = m.takeEvents()
	return nil
}

// Run starts the session and ticks it until the source ends, Stop is called
// or ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(); err != nil {
		return err
	}

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.finish(ReasonCancelled)
			return nil
		case <-m.stop:
			m.finish(ReasonStopped)
			return nil
		case <-ticker.C:
			finished, err := m.Tick()
			if err != nil {
				m.finish(ReasonFailed)
				return err
			}
			if finished {
				m.finish(ReasonCompleted)
				return nil
			}
		}
	}
}

// Tick samples the source, applies its actions and updates the machine once.
// It reports whether a finite source has run out.
func (m *Manager) Tick() (bool, error) {
	var events []soundtrack.Event
	defer func() { m.broadcast(events) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stateMgr.GetPhase() != state.PhaseRunning {
		return false, ErrSessionNotRunning
	}

	elapsed := m.clock.Now().Sub(m.startedAt)
	frame, err := m.source.Sample(elapsed)
	if err != nil {
		return false, errors.Wrapf(err, "failed to sample signal at %v", elapsed)
	}

	for _, a := range frame.Actions {
		m.apply(a)
	}
	if m.options.Changed() {
		zlog.Debug().Msgf("session: music volume changed: volume=%.2f", m.options.MusicVolume())
		m.machine.ResetVolume()
	}
	m.machine.Update(frame.Threat)
	m.stateMgr.RecordTick(frame.Threat)
	events = m.takeEvents()

	return m.duration > 0 && elapsed >= m.duration, nil
}

// apply runs one host command against the machine.
func (m *Manager) apply(a signal.Action) {
	zlog.Debug().Msgf("session: applying action: action=%s", a)

	switch a.Kind {
	case signal.ActionSwitch:
		m.switchTo(a.State)
	case signal.ActionAddThreat:
		m.machine.AddThreat(a.Weight)
	case signal.ActionRemoveThreat:
		m.machine.RemoveThreat(a.Weight)
	case signal.ActionPause:
		m.machine.Pause()
	case signal.ActionResume:
		m.machine.Resume()
	case signal.ActionResetVolume:
		m.machine.ResetVolume()
	case signal.ActionResetPlaylists:
		m.machine.ResetPlaylists()
	default:
		zlog.Warn().Msgf("session: unknown action ignored: kind=%d", int(a.Kind))
	}
}

func (m *Manager) switchTo(s music.State) {
	switch s {
	case music.StateMenu:
		m.machine.PlayMenuMusic()
	case music.StateGame:
		m.machine.PlayGameMusic()
	case music.StateBattle:
		m.machine.PlayBattleMusic()
	case music.StateSilent:
		m.machine.Stop()
	}
}

// takeEvents drains the events buffered by the machine. Called with mu held.
func (m *Manager) takeEvents() []soundtrack.Event {
	var events []soundtrack.Event
	for {
		select {
		case e, ok := <-m.machine.Events():
			if !ok {
				return events
			}
			events = append(events, e)
		default:
			return events
		}
	}
}

// broadcast sends events to the subscribers. It must be called without mu
// so a slow subscriber cannot stall Info or Close.
func (m *Manager) broadcast(events []soundtrack.Event) {
	sessionID := m.stateMgr.GetSessionID()
	for _, e := range events {
		m.notification.Broadcast(&notification.Notification{
			SessionID: sessionID,
			Event:     e,
		})
	}
}

// Stop asks Run to finish the session. Safe to call from any goroutine.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// finish stops the music and closes Done.
func (m *Manager) finish(reason string) {
	m.mu.Lock()
	if !m.stateMgr.Finish(m.clock.Now(), reason) {
		m.mu.Unlock()
		return
	}
	m.machine.Stop()
	events := m.takeEvents()
	info := m.stateMgr.Info()
	m.mu.Unlock()

	m.broadcast(events)

	zlog.Info().Msgf("phase changed: phase=FINISHED session_id=%s reason=%s ticks=%d threat_ticks=%d",
		info.SessionID, reason, info.Ticks, info.ThreatTicks)
	m.doneOnce.Do(func() { close(m.done) })
}

// Done returns a channel that is closed when the session has finished.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Info returns a snapshot of the session.
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Info{
		Session:    m.stateMgr.Info(),
		Soundtrack: m.machine.Snapshot(),
	}
}

// SessionID returns the session ID.
func (m *Manager) SessionID() string {
	return m.stateMgr.GetSessionID()
}

// Subscribe registers a stream for machine events. Streams are sent to from
// the ticking goroutine outside the session lock; a stream that blocks delays
// the next tick by up to the notification send timeout.
func (m *Manager) Subscribe(stream notification.Stream) string {
	return m.notification.Subscribe(stream)
}

// Unsubscribe removes a stream.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.notification.Unsubscribe(subscriptionID)
}

// Close finishes the session if needed and releases the machine, the
// sink and the options.
func (m *Manager) Close() error {
	m.finish(ReasonStopped)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.machine.Close()
	m.notification.Close()
	return m.release()
}

func (m *Manager) release() error {
	var errs error
	if err := m.sink.Close(); err != nil {
		errs = errors.CombineErrors(errs, errors.Wrap(err, "failed to close sink"))
	}
	if c, ok := m.options.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrap(err, "failed to close options"))
		}
	}
	return errs
}

// NewSource creates the signal source selected in the simulation config:
// a YAML timeline, a tengo script, or a manual source when neither is set.
func NewSource(cfg config.SimulationConfig) (signal.Source, error) {
	switch {
	case cfg.Scenario != "":
		src, err := signal.LoadTimeline(cfg.Scenario)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load scenario")
		}
		return src, nil
	case cfg.Script != "":
		src, err := signal.LoadScript(cfg.Script)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load script")
		}
		return src, nil
	default:
		return signal.NewManual(), nil
	}
}

// NewOptions opens the options file, watching it when enabled. A file that
// cannot be watched is still read once.
func NewOptions(cfg config.OptionsConfig) (Options, error) {
	p, err := options.NewFileProvider(cfg.File, cfg.MusicVolume())
	if err != nil {
		return nil, err
	}
	if cfg.WatchEnabled() {
		if err := p.Watch(); err != nil {
			zlog.Warn().Msgf("options: watch disabled: path=%s error=%v", p.Path(), err)
		}
	}
	zlog.Info().Msgf("options: loaded: path=%s music_volume=%.2f", p.Path(), p.MusicVolume())
	return p, nil
}
