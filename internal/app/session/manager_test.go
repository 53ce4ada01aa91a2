package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/combatbgm/internal/app/notification"
	"github.com/osa030/combatbgm/internal/app/playback"
	"github.com/osa030/combatbgm/internal/app/session/state"
	"github.com/osa030/combatbgm/internal/app/signal"
	"github.com/osa030/combatbgm/internal/app/soundtrack"
	"github.com/osa030/combatbgm/internal/domain/music"
	"github.com/osa030/combatbgm/internal/infra/clock"
	"github.com/osa030/combatbgm/internal/infra/config"
	"github.com/osa030/combatbgm/internal/infra/options"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

const testConfigYAML = `
music:
  enter_combat_delay_seconds: 2
  exit_combat_delay_seconds: 5
tracks:
  menu: {id: menu, duration: 5s}
  game:
    providers:
      - type: static
        settings:
          tracks:
            - {id: g0, duration: 10s}
            - {id: g1, duration: 10s}
  battle:
    providers:
      - type: static
        settings:
          tracks:
            - {id: b0, duration: 30s}
simulation:
  tick_rate_hz: 1000
`

const skirmishYAML = `
name: skirmish
duration: 20s
steps:
  - {at: 3s, threat: true}
  - {at: 6s, threat: false}
`

type fakeOptions struct {
	volume  float64
	changed bool
}

func (o *fakeOptions) MusicVolume() float64 { return o.volume }

func (o *fakeOptions) Changed() bool {
	c := o.changed
	o.changed = false
	return c
}

type recorder struct {
	mu     sync.Mutex
	events []soundtrack.Event
}

func (r *recorder) Send(n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n.Event)
	return nil
}

// transitions returns the state changes as "FROM>TO".
func (r *recorder) transitions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Type == soundtrack.EventStateChanged {
			out = append(out, e.From.String()+">"+e.State.String())
		}
	}
	return out
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfigYAML))
	require.NoError(t, err)
	return cfg
}

func newManager(t *testing.T, src signal.Source, opts Options) (*Manager, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(epoch)
	if opts == nil {
		opts = options.Static(0.5)
	}
	m, err := NewManager(context.Background(), testConfig(t), Deps{
		Clock:   clk,
		Source:  src,
		Options: opts,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, clk
}

// tickFor advances the clock one second at a time and ticks after each step.
func tickFor(t *testing.T, m *Manager, clk *clock.Manual, seconds int) bool {
	t.Helper()
	var finished bool
	for i := 0; i < seconds; i++ {
		clk.Advance(time.Second)
		var err error
		finished, err = m.Tick()
		require.NoError(t, err)
	}
	return finished
}

func TestManager_Skirmish(t *testing.T) {
	src, err := signal.ParseTimeline([]byte(skirmishYAML))
	require.NoError(t, err)
	m, clk := newManager(t, src, nil)

	rec := &recorder{}
	m.Subscribe(rec)

	require.NoError(t, m.Start())
	info := m.Info()
	assert.Equal(t, state.PhaseRunning, info.Session.Phase)
	assert.Equal(t, music.StateGame, info.Soundtrack.State)
	assert.Equal(t, "g0", info.Soundtrack.CurrentTrack)
	assert.Equal(t, 0.5, info.Soundtrack.Volume)

	// Threat at 3s arms the enter timer, which fires at 5s.
	assert.False(t, tickFor(t, m, clk, 4))
	info = m.Info()
	assert.Equal(t, music.StateGame, info.Soundtrack.State)
	assert.True(t, info.Soundtrack.EnterPending)

	assert.False(t, tickFor(t, m, clk, 1))
	info = m.Info()
	assert.Equal(t, music.StateBattle, info.Soundtrack.State)
	assert.Equal(t, "b0", info.Soundtrack.CurrentTrack)

	// Threat clears at 6s; the exit timer fires at 11s.
	assert.False(t, tickFor(t, m, clk, 5))
	info = m.Info()
	assert.Equal(t, music.StateBattle, info.Soundtrack.State)
	assert.True(t, info.Soundtrack.ExitPending)

	assert.False(t, tickFor(t, m, clk, 1))
	info = m.Info()
	assert.Equal(t, music.StateGame, info.Soundtrack.State)
	assert.Equal(t, "g0", info.Soundtrack.CurrentTrack, "game playlist resumes at its cursor")

	// The scenario ends at 20s.
	assert.False(t, tickFor(t, m, clk, 8))
	assert.True(t, tickFor(t, m, clk, 1))

	info = m.Info()
	assert.Equal(t, uint64(20), info.Session.Ticks)
	assert.Equal(t, uint64(3), info.Session.ThreatTicks)

	assert.Equal(t, []string{"SILENT>GAME", "GAME>BATTLE", "BATTLE>GAME"}, rec.transitions())
}

func TestManager_GamePlaylistAdvancesOnCompletion(t *testing.T) {
	m, clk := newManager(t, signal.NewManual(), nil)
	require.NoError(t, m.Start())

	tickFor(t, m, clk, 10)
	assert.Equal(t, "g1", m.Info().Soundtrack.CurrentTrack)
	assert.Equal(t, 1, m.Info().Soundtrack.GameIndex)

	tickFor(t, m, clk, 10)
	assert.Equal(t, "g0", m.Info().Soundtrack.CurrentTrack)
}

func TestManager_ManualActions(t *testing.T) {
	src := signal.NewManual()
	m, clk := newManager(t, src, nil)
	require.NoError(t, m.Start())

	src.Queue(signal.Switch(music.StateMenu))
	tickFor(t, m, clk, 1)
	assert.Equal(t, music.StateMenu, m.Info().Soundtrack.State)
	assert.Equal(t, "menu", m.Info().Soundtrack.CurrentTrack)

	src.Queue(signal.Action{Kind: signal.ActionPause})
	tickFor(t, m, clk, 1)
	assert.Equal(t, playback.StatePaused, m.Info().Soundtrack.PlaybackState)

	src.Queue(signal.Action{Kind: signal.ActionResume})
	tickFor(t, m, clk, 1)
	assert.Equal(t, playback.StatePlaying, m.Info().Soundtrack.PlaybackState)

	// A quiet tick in GAME would cancel the enter timer armed by the weight.
	src.SetThreat(true)
	src.Queue(signal.Switch(music.StateGame))
	src.Queue(signal.Action{Kind: signal.ActionAddThreat, Weight: 3})
	tickFor(t, m, clk, 1)
	info := m.Info()
	assert.Equal(t, music.StateGame, info.Soundtrack.State)
	assert.Equal(t, 3, info.Soundtrack.Bucket)
	assert.True(t, info.Soundtrack.EnterPending)

	src.Queue(signal.Switch(music.StateSilent))
	tickFor(t, m, clk, 1)
	info = m.Info()
	assert.Equal(t, music.StateSilent, info.Soundtrack.State)
	assert.False(t, info.Soundtrack.EnterPending)
	assert.Empty(t, info.Soundtrack.CurrentTrack)
}

func TestManager_SlowSubscriberDoesNotHoldLock(t *testing.T) {
	m, _ := newManager(t, signal.NewManual(), nil)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	m.Subscribe(notification.StreamFunc(func(*notification.Notification) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	}))

	started := make(chan error, 1)
	go func() { started <- m.Start() }()
	<-entered

	infoDone := make(chan Info, 1)
	go func() { infoDone <- m.Info() }()

	select {
	case info := <-infoDone:
		assert.Equal(t, state.PhaseRunning, info.Session.Phase)
		assert.Equal(t, music.StateGame, info.Soundtrack.State)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Info blocked while a subscriber was sending")
	}

	close(release)
	require.NoError(t, <-started)
}

func TestManager_VolumeChangeResetsVolume(t *testing.T) {
	opts := &fakeOptions{volume: 0.5}
	m, clk := newManager(t, signal.NewManual(), opts)
	require.NoError(t, m.Start())
	assert.Equal(t, 0.5, m.Info().Soundtrack.Volume)

	// Not applied until the options report a change.
	opts.volume = 0.8
	tickFor(t, m, clk, 1)
	assert.Equal(t, 0.5, m.Info().Soundtrack.Volume)

	opts.changed = true
	tickFor(t, m, clk, 1)
	assert.Equal(t, 0.8, m.Info().Soundtrack.Volume)
}

func TestManager_TickBeforeStart(t *testing.T) {
	m, _ := newManager(t, signal.NewManual(), nil)

	_, err := m.Tick()
	assert.ErrorIs(t, err, ErrSessionNotRunning)
}

func TestManager_StartAfterClose(t *testing.T) {
	m, _ := newManager(t, signal.NewManual(), nil)
	require.NoError(t, m.Close())

	assert.ErrorIs(t, m.Start(), ErrSessionFinished)
	assert.NoError(t, m.Close(), "close is idempotent")
}

func TestManager_RunStop(t *testing.T) {
	m, _ := newManager(t, signal.NewManual(), nil)

	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return m.Info().Session.Phase == state.PhaseRunning
	}, 2*time.Second, 5*time.Millisecond)

	m.Stop()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	<-m.Done()
	info := m.Info()
	assert.Equal(t, state.PhaseFinished, info.Session.Phase)
	assert.Equal(t, ReasonStopped, info.Session.Reason)
	assert.Equal(t, music.StateSilent, info.Soundtrack.State)
}

func TestManager_RunCancelled(t *testing.T) {
	m, _ := newManager(t, signal.NewManual(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, ReasonCancelled, m.Info().Session.Reason)
}

func TestManager_RunCompletesFiniteSource(t *testing.T) {
	src, err := signal.ParseTimeline([]byte("name: short\nduration: 20ms\nsteps:\n  - {at: 0s, threat: true}\n"))
	require.NoError(t, err)

	m, err := NewManager(context.Background(), testConfig(t), Deps{
		Source:  src,
		Options: options.Static(1),
	})
	require.NoError(t, err)
	defer m.Close()

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not complete")
	}
	assert.Equal(t, ReasonCompleted, m.Info().Session.Reason)
}

func TestNewManager_Errors(t *testing.T) {
	t.Run("missing playlist directory", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Tracks.Battle.Providers[0] = config.ProviderConfig{
			Type:     "directory",
			Settings: map[string]any{"dir": filepath.Join(t.TempDir(), "missing")},
		}
		_, err := NewManager(context.Background(), cfg, Deps{
			Source:  signal.NewManual(),
			Options: options.Static(1),
		})
		assert.Error(t, err)
	})

	t.Run("unknown sink", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Sink.Type = "alsa"
		_, err := NewManager(context.Background(), cfg, Deps{
			Source:  signal.NewManual(),
			Options: options.Static(1),
		})
		assert.Error(t, err)
	})
}

func TestNewSource(t *testing.T) {
	dir := t.TempDir()
	scenario := filepath.Join(dir, "skirmish.yaml")
	require.NoError(t, os.WriteFile(scenario, []byte(skirmishYAML), 0o644))
	script := filepath.Join(dir, "calm.tengo")
	require.NoError(t, os.WriteFile(script, []byte("sample := func(ctx, state) { return false }\n"), 0o644))

	tests := []struct {
		name     string
		cfg      config.SimulationConfig
		expected any
		wantErr  bool
	}{
		{name: "scenario", cfg: config.SimulationConfig{Scenario: scenario}, expected: &signal.Timeline{}},
		{name: "script", cfg: config.SimulationConfig{Script: script}, expected: &signal.Script{}},
		{name: "manual", cfg: config.SimulationConfig{}, expected: &signal.Manual{}},
		{name: "missing scenario", cfg: config.SimulationConfig{Scenario: filepath.Join(dir, "nope.yaml")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewSource(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.expected, src)
		})
	}
}

func TestNewOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.toml")
	require.NoError(t, os.WriteFile(path, []byte("music_volume = 0.3\n"), 0o644))

	watch := false
	opts, err := NewOptions(config.OptionsConfig{File: path, Watch: &watch})
	require.NoError(t, err)
	assert.Equal(t, 0.3, opts.MusicVolume())
	assert.False(t, opts.Changed())
}
