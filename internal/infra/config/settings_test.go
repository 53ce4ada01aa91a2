package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleSettings struct {
	Dir      string        `mapstructure:"dir" validate:"required"`
	Pattern  string        `mapstructure:"pattern" default:"*.ogg"`
	Buffer   time.Duration `mapstructure:"buffer" default:"100ms"`
	Channels int           `mapstructure:"channels" default:"2" validate:"gte=1,lte=8"`
}

func TestDecodeSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		want     sampleSettings
		errMsg   string
	}{
		{
			name:     "defaults",
			settings: map[string]any{"dir": "music"},
			want:     sampleSettings{Dir: "music", Pattern: "*.ogg", Buffer: 100 * time.Millisecond, Channels: 2},
		},
		{
			name:     "duration string and weak int",
			settings: map[string]any{"dir": "music", "buffer": "250ms", "channels": "1"},
			want:     sampleSettings{Dir: "music", Pattern: "*.ogg", Buffer: 250 * time.Millisecond, Channels: 1},
		},
		{
			name:     "nil settings",
			settings: nil,
			errMsg:   "Dir",
		},
		{
			name:     "unknown key",
			settings: map[string]any{"dir": "music", "colour": "red"},
			errMsg:   "colour",
		},
		{
			name:     "out of range",
			settings: map[string]any{"dir": "music", "channels": 9},
			errMsg:   "Channels",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got sampleSettings
			err := DecodeSettings(tt.settings, &got)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
