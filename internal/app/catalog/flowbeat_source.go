package catalog

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/flowbeat/internal/domain/track"
)

type FlowBeatSourceConfig struct {
	Limit int `yaml:"limit" mapstructure:"limit" default:"500" validate:"gte=0"`
}

// FlowBeatSource lists the music library of the FlowBeat API.
type FlowBeatSource struct {
	client FlowBeatClient
	config *FlowBeatSourceConfig
}

// NewFlowBeatSource creates a new FlowBeatSource.
func NewFlowBeatSource(client FlowBeatClient, settings map[string]any) (*FlowBeatSource, error) {
	if client == nil {
		return nil, errors.New("flowbeat client is required")
	}

	var config FlowBeatSourceConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return &FlowBeatSource{client: client, config: &config}, nil
}

// Tracks lists the library. The reference is ignored.
func (s *FlowBeatSource) Tracks(ctx context.Context, _ string, limit int) ([]track.Track, error) {
	if limit <= 0 {
		limit = s.config.Limit
	}
	tracks, err := s.client.ListAllMusic(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list music")
	}
	return tracks, nil
}

// Type returns the source type.
func (s *FlowBeatSource) Type() string {
	return "flowbeat"
}
