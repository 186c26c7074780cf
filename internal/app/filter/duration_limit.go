package filter

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/flowbeat/internal/domain/track"
)

// DurationLimitConfig represents the configuration for DurationLimitFilter.
// MaxSeconds falls back to 30 minutes when unset; a zero bound set
// directly disables that side.
type DurationLimitConfig struct {
	MinSeconds int `yaml:"min_seconds" mapstructure:"min_seconds" validate:"gte=0"`
	MaxSeconds int `yaml:"max_seconds" mapstructure:"max_seconds" default:"1800" validate:"gte=0"`
}

// DurationLimitFilter checks if track duration is within allowed limits.
// Tracks with an unknown duration pass; their length is only learned once
// the transport reads the stream metadata.
type DurationLimitFilter struct {
	config *DurationLimitConfig
}

// NewDurationLimitFilter creates a new duration limit filter.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return "duration_limit_filter"
}

func (f *DurationLimitFilter) Description() string {
	return "Rejects tracks shorter or longer than the configured bounds"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{"duration_too_short", "duration_too_long"}
}

func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var config DurationLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}

	if config.MaxSeconds > 0 && config.MinSeconds > config.MaxSeconds {
		return errors.Newf("min_seconds (%d) cannot be greater than max_seconds (%d)", config.MinSeconds, config.MaxSeconds)
	}

	f.config = &config
	zlog.Info().Msgf("duration limit filter config: %+v", config)
	return nil
}

func (f *DurationLimitFilter) AppliesTo(origin Origin) bool {
	return true
}

func (f *DurationLimitFilter) Check(ctx context.Context, t track.Track) Result {
	if f.config == nil || t.Duration <= 0 {
		return Accept()
	}

	if min := time.Duration(f.config.MinSeconds) * time.Second; t.Duration < min {
		return Reject("duration_too_short")
	}
	if f.config.MaxSeconds > 0 && t.Duration > time.Duration(f.config.MaxSeconds)*time.Second {
		return Reject("duration_too_long")
	}
	return Accept()
}

func init() {
	Register("duration_limit_filter", func() Filter {
		return &DurationLimitFilter{}
	})
}
