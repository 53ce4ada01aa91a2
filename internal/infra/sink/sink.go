// Package sink creates the audio sink selected in the configuration.
package sink

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/combatbgm/internal/domain/track"
	"github.com/osa030/combatbgm/internal/infra/clock"
	"github.com/osa030/combatbgm/internal/infra/config"
	"github.com/osa030/combatbgm/internal/infra/sink/beepsink"
	"github.com/osa030/combatbgm/internal/infra/sink/ebitensink"
	"github.com/osa030/combatbgm/internal/infra/sink/headless"
)

// Sink types
const (
	TypeHeadless = "headless"
	TypeBeep     = "beep"
	TypeEbiten   = "ebiten"
)

// ErrUnsupportedType is returned for an unknown sink type.
var ErrUnsupportedType = errors.New("unsupported sink type")

// New creates a sink. c drives the headless sink and is ignored by device sinks.
func New(cfg config.SinkConfig, c clock.Clock) (track.Sink, error) {
	zlog.Debug().Msgf("sink: creating sink: type=%s", cfg.Type)

	switch cfg.Type {
	case TypeHeadless, "":
		return headless.New(cfg.Settings, c)
	case TypeBeep:
		return beepsink.New(cfg.Settings)
	case TypeEbiten:
		return ebitensink.New(cfg.Settings)
	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "%q", cfg.Type)
	}
}
