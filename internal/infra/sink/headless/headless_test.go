package headless

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/combatbgm/internal/domain/track"
	"github.com/osa030/combatbgm/internal/infra/clock"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newSink(t *testing.T, settings map[string]any) (*Sink, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(epoch)
	s, err := New(settings, clk)
	require.NoError(t, err)
	return s, clk
}

func load(t *testing.T, s *Sink, tr track.Track) *Handle {
	t.Helper()
	h, err := s.Load(tr)
	require.NoError(t, err)
	return h.(*Handle)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		expected time.Duration
		wantErr  bool
	}{
		{name: "defaults", settings: nil, expected: 3 * time.Minute},
		{name: "duration string", settings: map[string]any{"default_duration": "90s"}, expected: 90 * time.Second},
		{name: "unknown key", settings: map[string]any{"speed": 2}, wantErr: true},
		{name: "negative duration", settings: map[string]any{"default_duration": "-1s"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.settings, clock.NewManual(epoch))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s.config.DefaultDuration)
		})
	}
}

func TestSink_LoadDuration(t *testing.T) {
	s, _ := newSink(t, map[string]any{"default_duration": "1m"})

	hinted := load(t, s, track.Track{ID: "a", Duration: 10 * time.Second})
	plain := load(t, s, track.Track{ID: "b"})

	assert.Equal(t, "a", hinted.ID())
	assert.Equal(t, 10*time.Second, hinted.Duration())
	assert.Equal(t, time.Minute, plain.Duration())
}

func TestSink_CompletionFromPoll(t *testing.T) {
	s, clk := newSink(t, nil)
	h := load(t, s, track.Track{ID: "a", Duration: 10 * time.Second})

	completed := 0
	h.OnCompletion(func() { completed++ })
	h.Play()

	clk.Advance(9 * time.Second)
	s.Poll()
	assert.Equal(t, 0, completed)
	assert.True(t, h.IsPlaying())
	assert.Equal(t, 9*time.Second, h.Position())

	// Reaching the end does nothing until Poll.
	clk.Advance(5 * time.Second)
	assert.Equal(t, 0, completed)
	assert.Equal(t, 10*time.Second, h.Position())

	s.Poll()
	assert.Equal(t, 1, completed)
	assert.False(t, h.IsPlaying())

	s.Poll()
	assert.Equal(t, 1, completed, "completion fires once")
}

func TestHandle_PauseResume(t *testing.T) {
	s, clk := newSink(t, nil)
	h := load(t, s, track.Track{ID: "a", Duration: 10 * time.Second})
	completed := 0
	h.OnCompletion(func() { completed++ })

	h.Play()
	clk.Advance(4 * time.Second)
	h.Pause()
	assert.False(t, h.IsPlaying())

	clk.Advance(time.Hour)
	s.Poll()
	assert.Equal(t, 0, completed)
	assert.Equal(t, 4*time.Second, h.Position())

	h.Play()
	clk.Advance(6 * time.Second)
	s.Poll()
	assert.Equal(t, 1, completed)
}

func TestHandle_StopRewinds(t *testing.T) {
	s, clk := newSink(t, nil)
	h := load(t, s, track.Track{ID: "a", Duration: 10 * time.Second})

	h.Play()
	clk.Advance(7 * time.Second)
	h.Stop()
	assert.False(t, h.IsPlaying())
	assert.Equal(t, time.Duration(0), h.Position())

	h.Play()
	clk.Advance(3 * time.Second)
	assert.Equal(t, 3*time.Second, h.Position())
}

func TestHandle_ReplayAfterCompletion(t *testing.T) {
	s, clk := newSink(t, nil)
	h := load(t, s, track.Track{ID: "a", Duration: 10 * time.Second})

	completed := 0
	h.OnCompletion(func() {
		completed++
		h.Play()
	})
	h.Play()

	clk.Advance(10 * time.Second)
	s.Poll()
	assert.Equal(t, 1, completed)
	assert.True(t, h.IsPlaying())
	assert.Equal(t, time.Duration(0), h.Position())

	clk.Advance(10 * time.Second)
	s.Poll()
	assert.Equal(t, 2, completed)
}

func TestHandle_CallbackStartsNext(t *testing.T) {
	s, clk := newSink(t, nil)
	a := load(t, s, track.Track{ID: "a", Duration: 5 * time.Second})
	b := load(t, s, track.Track{ID: "b", Duration: 5 * time.Second})

	var order []string
	a.OnCompletion(func() {
		order = append(order, "a")
		b.Play()
	})
	b.OnCompletion(func() { order = append(order, "b") })

	a.Play()
	clk.Advance(5 * time.Second)
	s.Poll()
	assert.Equal(t, []string{"a"}, order)
	assert.True(t, b.IsPlaying())

	clk.Advance(5 * time.Second)
	s.Poll()
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestHandle_Volume(t *testing.T) {
	s, _ := newSink(t, nil)
	h := load(t, s, track.Track{ID: "a"})

	assert.Equal(t, 1.0, h.Volume())
	h.SetVolume(0.25)
	assert.Equal(t, 0.25, h.Volume())
}

func TestSink_Close(t *testing.T) {
	s, _ := newSink(t, nil)
	h := load(t, s, track.Track{ID: "a"})
	h.Play()

	require.NoError(t, s.Close())
	assert.False(t, h.IsPlaying())

	h.Play()
	assert.False(t, h.IsPlaying())

	_, err := s.Load(track.Track{ID: "b"})
	assert.Error(t, err)
}
