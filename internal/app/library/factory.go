package library

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/combatbgm/internal/domain/playlist"
	"github.com/osa030/combatbgm/internal/domain/track"
	"github.com/osa030/combatbgm/internal/infra/config"
)

// NewProvider creates a single provider from its configuration.
func NewProvider(pcfg config.ProviderConfig) (Provider, error) {
	switch pcfg.Type {
	case "static":
		return NewStaticProvider(pcfg.Settings)
	case "directory":
		return NewDirectoryProvider(pcfg.Settings)
	default:
		return nil, errors.Newf("unsupported provider type: %s", pcfg.Type)
	}
}

// NewProviderChainFromConfig creates a provider chain for one playlist.
func NewProviderChainFromConfig(name string, pc config.PlaylistConfig) (*ProviderChain, error) {
	if len(pc.Providers) == 0 {
		return nil, errors.Newf("no providers configured for playlist %s", name)
	}

	var providers []ProviderWithMetadata
	for i, pcfg := range pc.Providers {
		zlog.Debug().Msgf("library: creating provider: playlist=%s index=%d type=%s", name, i+1, pcfg.Type)

		provider, err := NewProvider(pcfg)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (playlist %s, index %d, type %s)", name, i, pcfg.Type)
		}

		displayName := pcfg.DisplayName
		if displayName == "" {
			displayName = name + "/" + pcfg.Type
		}
		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: displayName,
		})
	}

	return NewProviderChain(providers), nil
}

// Resolve builds the named playlist from its providers.
func Resolve(ctx context.Context, name string, pc config.PlaylistConfig) (playlist.Playlist, error) {
	chain, err := NewProviderChainFromConfig(name, pc)
	if err != nil {
		return playlist.Playlist{}, err
	}
	tracks, err := chain.Tracks(ctx)
	if err != nil {
		return playlist.Playlist{}, errors.Wrapf(err, "playlist %s", name)
	}

	pl := playlist.Playlist{Name: name, Tracks: tracks}
	zlog.Info().Msgf("library: playlist resolved: name=%s tracks=%d duration=%v", name, len(tracks), pl.TotalDuration())
	return pl, nil
}

// Load loads every track of pl into sink, in order.
func Load(sink track.Sink, pl playlist.Playlist) ([]track.Handle, error) {
	handles := make([]track.Handle, 0, len(pl.Tracks))
	for _, t := range pl.Tracks {
		h, err := sink.Load(t)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load track %s of playlist %s", t.ID, pl.Name)
		}
		handles = append(handles, h)
	}
	return handles, nil
}
