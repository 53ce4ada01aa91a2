package music

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateSilent, "SILENT"},
		{StateMenu, "MENU"},
		{StateGame, "GAME"},
		{StateBattle, "BATTLE"},
		{State(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
		})
	}
}

func TestState_ZeroValueIsSilent(t *testing.T) {
	var s State
	assert.Equal(t, StateSilent, s)
	assert.False(t, s.HasPlaylist())
	assert.False(t, StateMenu.HasPlaylist())
	assert.True(t, StateGame.HasPlaylist())
	assert.True(t, StateBattle.HasPlaylist())
}

func TestParseState(t *testing.T) {
	for _, s := range []State{StateSilent, StateMenu, StateGame, StateBattle} {
		parsed, err := ParseState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	parsed, err := ParseState("  battle ")
	require.NoError(t, err)
	assert.Equal(t, StateBattle, parsed)

	_, err = ParseState("credits")
	assert.Error(t, err)
}
