package library

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/combatbgm/internal/domain/track"
	"github.com/osa030/combatbgm/internal/infra/config"
)

// DirectoryProviderConfig selects audio files from a directory.
type DirectoryProviderConfig struct {
	Dir      string `mapstructure:"dir" validate:"required"`
	Pattern  string `mapstructure:"pattern" default:"*.ogg"`
	IDPrefix string `mapstructure:"id_prefix"` // e.g. "engine:battle/"
}

// DirectoryProvider lists the files of a directory matching a glob pattern,
// sorted by name. Track IDs are the prefix plus the file name without extension.
type DirectoryProvider struct {
	config *DirectoryProviderConfig
}

// NewDirectoryProvider creates a DirectoryProvider from provider settings.
func NewDirectoryProvider(settings map[string]any) (*DirectoryProvider, error) {
	var cfg DirectoryProviderConfig
	if err := config.DecodeSettings(settings, &cfg); err != nil {
		return nil, errors.Wrap(err, "directory provider")
	}
	if _, err := filepath.Match(cfg.Pattern, ""); err != nil {
		return nil, errors.Wrapf(err, "directory provider: invalid pattern %q", cfg.Pattern)
	}
	zlog.Debug().Msgf("directory provider config: %+v", cfg)
	return &DirectoryProvider{config: &cfg}, nil
}

// Tracks scans the directory.
func (p *DirectoryProvider) Tracks(ctx context.Context) ([]track.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(p.config.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", p.config.Dir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(p.config.Pattern, e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	tracks := make([]track.Track, 0, len(names))
	for _, name := range names {
		base := strings.TrimSuffix(name, filepath.Ext(name))
		tracks = append(tracks, track.Track{
			ID:    p.config.IDPrefix + base,
			Title: base,
			Path:  filepath.Join(p.config.Dir, name),
		})
	}
	return tracks, nil
}

// Name returns the provider name.
func (p *DirectoryProvider) Name() string {
	return "directory"
}
