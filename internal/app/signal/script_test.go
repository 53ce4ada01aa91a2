package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/combatbgm/internal/domain/music"
)

func TestScript_BoolResult(t *testing.T) {
	s, err := NewScript([]byte(`
duration := 30
sample := func(ctx, state) {
	return ctx.elapsed >= 10 && ctx.elapsed < 20
}
`))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, s.Duration())

	for _, tc := range []struct {
		at   time.Duration
		want bool
	}{
		{0, false},
		{10 * time.Second, true},
		{19 * time.Second, true},
		{20 * time.Second, false},
	} {
		f, err := s.Sample(tc.at)
		require.NoError(t, err)
		assert.Equal(t, tc.want, f.Threat, "at %v", tc.at)
	}
}

func TestScript_MapResultAndState(t *testing.T) {
	s, err := NewScript([]byte(`
sample := func(ctx, state) {
	if ctx.tick == 0 {
		state.seen = 0
		return {threat: false, actions: [{action: "switch", state: "game"}]}
	}
	state.seen += 1
	if state.seen == 2 {
		return {threat: true, actions: [{action: "add_threat", weight: 2}]}
	}
	return {threat: state.seen > 2}
}
`))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), s.Duration())

	f, err := s.Sample(0)
	require.NoError(t, err)
	assert.False(t, f.Threat)
	assert.Equal(t, []Action{Switch(music.StateGame)}, f.Actions)

	f, err = s.Sample(time.Second)
	require.NoError(t, err)
	assert.False(t, f.Threat)
	assert.Empty(t, f.Actions)

	f, err = s.Sample(2 * time.Second)
	require.NoError(t, err)
	assert.True(t, f.Threat)
	assert.Equal(t, []Action{{Kind: ActionAddThreat, Weight: 2}}, f.Actions)

	f, err = s.Sample(3 * time.Second)
	require.NoError(t, err)
	assert.True(t, f.Threat)
}

func TestScript_Errors(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		compileErr bool
	}{
		{name: "syntax error", src: `sample := func(ctx, state) {`, compileErr: true},
		{name: "no sample", src: `x := 1`, compileErr: true},
		{name: "negative duration", src: "duration := -1\nsample := func(c, s) { return true }", compileErr: true},
		{name: "no return value", src: `sample := func(ctx, state) {}`},
		{name: "string result", src: `sample := func(ctx, state) { return "battle" }`},
		{name: "bad action", src: `sample := func(ctx, state) { return {actions: [{action: "dance"}]} }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScript([]byte(tt.src))
			if tt.compileErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			_, err = s.Sample(0)
			assert.Error(t, err)
		})
	}
}
