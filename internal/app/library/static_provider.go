package library

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/combatbgm/internal/domain/track"
	"github.com/osa030/combatbgm/internal/infra/config"
)

// StaticProviderConfig lists tracks explicitly.
type StaticProviderConfig struct {
	Tracks []track.Track `mapstructure:"tracks" validate:"required,min=1,dive"`
}

// StaticProvider provides a fixed list of tracks.
type StaticProvider struct {
	config *StaticProviderConfig
}

// NewStaticProvider creates a StaticProvider from provider settings.
func NewStaticProvider(settings map[string]any) (*StaticProvider, error) {
	var cfg StaticProviderConfig
	if err := config.DecodeSettings(settings, &cfg); err != nil {
		return nil, errors.Wrap(err, "static provider")
	}
	zlog.Debug().Msgf("static provider config: tracks=%d", len(cfg.Tracks))
	return &StaticProvider{config: &cfg}, nil
}

// Tracks returns a copy of the configured tracks.
func (p *StaticProvider) Tracks(ctx context.Context) ([]track.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]track.Track, len(p.config.Tracks))
	copy(out, p.config.Tracks)
	return out, nil
}

// Name returns the provider name.
func (p *StaticProvider) Name() string {
	return "static"
}
