package signal

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/combatbgm/internal/domain/music"
)

func TestNewAction(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		state   string
		weight  int
		want    Action
		wantErr bool
	}{
		{name: "switch", kind: "switch", state: "battle", want: Switch(music.StateBattle)},
		{name: "switch upper case", kind: "SWITCH", state: "MENU", want: Switch(music.StateMenu)},
		{name: "add threat", kind: "add_threat", weight: 3, want: Action{Kind: ActionAddThreat, Weight: 3}},
		{name: "remove threat", kind: "remove_threat", weight: 1, want: Action{Kind: ActionRemoveThreat, Weight: 1}},
		{name: "pause", kind: "pause", want: Action{Kind: ActionPause}},
		{name: "reset playlists", kind: "reset_playlists", want: Action{Kind: ActionResetPlaylists}},
		{name: "unknown kind", kind: "explode", wantErr: true},
		{name: "unknown state", kind: "switch", state: "credits", wantErr: true},
		{name: "zero weight", kind: "add_threat", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewAction(tt.kind, tt.state, tt.weight)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseActionKind_Unknown(t *testing.T) {
	_, err := ParseActionKind("explode")
	assert.True(t, errors.Is(err, ErrUnknownAction))
}

func TestActionKind_RoundTrip(t *testing.T) {
	for k := ActionSwitch; k <= ActionResetPlaylists; k++ {
		got, err := ParseActionKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	assert.Equal(t, "unknown", ActionKind(99).String())
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "switch:GAME", Switch(music.StateGame).String())
	assert.Equal(t, "add_threat:2", Action{Kind: ActionAddThreat, Weight: 2}.String())
	assert.Equal(t, "resume", Action{Kind: ActionResume}.String())
}
