package library

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/combatbgm/internal/domain/track"
)

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// ProviderChain concatenates the tracks of several providers in order.
type ProviderChain struct {
	providers []ProviderWithMetadata
}

// NewProviderChain creates a new provider chain.
func NewProviderChain(providers []ProviderWithMetadata) *ProviderChain {
	return &ProviderChain{
		providers: providers,
	}
}

// Tracks collects tracks from every provider. A failing provider is skipped,
// and a track ID seen from an earlier provider is dropped.
func (c *ProviderChain) Tracks(ctx context.Context) ([]track.Track, error) {
	var all []track.Track
	seen := make(map[string]bool)

	for i, pm := range c.providers {
		zlog.Debug().Msgf("library: trying provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		tracks, err := pm.Provider.Tracks(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zlog.Warn().Msgf("library: provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			continue
		}

		added := 0
		for _, t := range tracks {
			if seen[t.ID] {
				zlog.Debug().Msgf("library: duplicate track skipped: provider=%s track=%s", pm.DisplayName, t.ID)
				continue
			}
			seen[t.ID] = true
			all = append(all, t)
			added++
		}

		zlog.Debug().Msgf("library: provider returned tracks: provider=%s count=%d total_so_far=%d",
			pm.DisplayName, added, len(all))
	}

	if len(all) == 0 {
		return nil, errors.Wrap(ErrNoTracks, "all providers returned no tracks")
	}

	return all, nil
}

// Name returns the chain name.
func (c *ProviderChain) Name() string {
	return "provider_chain"
}
