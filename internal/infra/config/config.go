// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/combatbgm/internal/domain/track"
)

// Config represents the application configuration.
type Config struct {
	Music      MusicConfig      `yaml:"music"`
	Tracks     TracksConfig     `yaml:"tracks"`
	Sink       SinkConfig       `yaml:"sink"`
	Options    OptionsConfig    `yaml:"options"`
	Simulation SimulationConfig `yaml:"simulation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// MusicConfig holds the transition tuning.
type MusicConfig struct {
	EnterCombatDelaySeconds float64 `yaml:"enter_combat_delay_seconds" default:"2" validate:"gt=0"`
	ExitCombatDelaySeconds  float64 `yaml:"exit_combat_delay_seconds" default:"5" validate:"gt=0"`
	CombatThreshold         int     `yaml:"combat_threshold" default:"1" validate:"gte=1"`
	TrackWeight             int     `yaml:"track_weight" default:"1" validate:"gte=1"`
}

// EnterCombatDelay returns the GAME -> BATTLE debounce delay.
func (m MusicConfig) EnterCombatDelay() time.Duration {
	return seconds(m.EnterCombatDelaySeconds)
}

// ExitCombatDelay returns the BATTLE -> GAME debounce delay.
func (m MusicConfig) ExitCombatDelay() time.Duration {
	return seconds(m.ExitCombatDelaySeconds)
}

// TracksConfig represents the menu track and the two playlists.
type TracksConfig struct {
	Menu   track.Track    `yaml:"menu"`
	Game   PlaylistConfig `yaml:"game"`
	Battle PlaylistConfig `yaml:"battle"`
}

// PlaylistConfig lists the providers whose tracks form one playlist, in order.
type PlaylistConfig struct {
	Providers []ProviderConfig `yaml:"providers" validate:"required,min=1,dive"`
}

// ProviderConfig represents a single track provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required"`
	DisplayName string         `yaml:"display_name"`
	Settings    map[string]any `yaml:"settings"`
}

// SinkConfig selects the audio sink.
type SinkConfig struct {
	Type     string         `yaml:"type" default:"headless" validate:"oneof=headless beep ebiten"`
	Settings map[string]any `yaml:"settings"`
}

// OptionsConfig represents the player options file.
type OptionsConfig struct {
	File               string   `yaml:"file"` // Empty: XDG config dir
	DefaultMusicVolume *float64 `yaml:"default_music_volume" default:"1" validate:"omitempty,gte=0,lte=1"`
	Watch              *bool    `yaml:"watch" default:"true"`
}

// MusicVolume returns the volume used when the options file has none.
func (o OptionsConfig) MusicVolume() float64 {
	if o.DefaultMusicVolume == nil {
		return 1
	}
	return *o.DefaultMusicVolume
}

// WatchEnabled reports whether the options file is reloaded on change.
func (o OptionsConfig) WatchEnabled() bool {
	return o.Watch == nil || *o.Watch
}

// SimulationConfig represents the simulator loop.
type SimulationConfig struct {
	TickRateHz   int    `yaml:"tick_rate_hz" default:"60" validate:"gte=1,lte=1000"`
	InitialState string `yaml:"initial_state" default:"game" validate:"oneof=silent menu game battle"`
	Scenario     string `yaml:"scenario"` // YAML timeline
	Script       string `yaml:"script"`   // tengo script
}

// TickInterval returns the duration of one tick.
func (s SimulationConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(s.TickRateHz)
}

// LoggingConfig represents logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output string `yaml:"output" default:"stdout"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses, completes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("BGM_SINK_TYPE"); v != "" {
		c.Sink.Type = v
	}
	if v := os.Getenv("BGM_OPTIONS_FILE"); v != "" {
		c.Options.File = v
	}
	if v := os.Getenv("BGM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Simulation.Scenario != "" && c.Simulation.Script != "" {
		return errors.New("simulation scenario and script are mutually exclusive")
	}

	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
