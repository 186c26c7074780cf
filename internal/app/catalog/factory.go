package catalog

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/flowbeat/internal/infra/config"
)

// NewRegistryFromConfig creates a registry from configuration. Without
// configured catalogs the FlowBeat library is registered as "flowbeat".
// spotify may be nil when Spotify is not configured.
func NewRegistryFromConfig(cfg *config.Config, flowbeat FlowBeatClient, spotify SpotifyClient) (*Registry, error) {
	catalogs := cfg.Catalogs
	if len(catalogs) == 0 {
		catalogs = []config.CatalogConfig{{Type: "flowbeat", Name: "flowbeat", DisplayName: "FlowBeat"}}
	}

	var sources []SourceWithMetadata

	for i, ccfg := range catalogs {
		var source Source
		var err error
		zlog.Debug().Msgf("creating catalog: index=%d type=%s settings=%+v", i+1, ccfg.Type, ccfg.Settings)
		switch ccfg.Type {
		case "flowbeat":
			source, err = NewFlowBeatSource(flowbeat, ccfg.Settings)

		case "spotify":
			if spotify == nil {
				return nil, errors.Newf("catalog %s requires spotify credentials", ccfg.Name)
			}
			source, err = NewSpotifySource(spotify, ccfg.Settings)

		default:
			return nil, errors.Newf("unsupported catalog type: %s (catalog index %d)", ccfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create catalog (index %d, type %s)", i, ccfg.Type)
		}

		sources = append(sources, SourceWithMetadata{
			Source:      source,
			Name:        ccfg.Name,
			DisplayName: ccfg.DisplayName,
		})

		zlog.Info().Msgf("registered catalog: index=%d type=%s name=%s", i+1, ccfg.Type, ccfg.Name)
	}

	return NewRegistry(sources), nil
}
