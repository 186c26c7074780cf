package catalog

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/flowbeat/internal/domain/track"
)

var (
	ErrUnknownCatalog = errors.New("unknown catalog")
	ErrNoTracks       = errors.New("no catalog returned tracks")
)

// SourceWithMetadata wraps a source with its configured identity.
type SourceWithMetadata struct {
	Source      Source
	Name        string
	DisplayName string
}

// Info describes a registered source.
type Info struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	DisplayName string `json:"display_name,omitempty"`
}

// Registry holds the configured sources in configuration order.
type Registry struct {
	sources []SourceWithMetadata
}

// NewRegistry creates a new registry.
func NewRegistry(sources []SourceWithMetadata) *Registry {
	return &Registry{sources: sources}
}

// List returns the registered sources.
func (r *Registry) List() []Info {
	infos := make([]Info, len(r.sources))
	for i, sm := range r.sources {
		infos[i] = Info{Name: sm.Name, Type: sm.Source.Type(), DisplayName: sm.DisplayName}
	}
	return infos
}

// Get returns the source registered under name.
func (r *Registry) Get(name string) (Source, bool) {
	for _, sm := range r.sources {
		if sm.Name == name {
			return sm.Source, true
		}
	}
	return nil, false
}

// Load fetches tracks from the named source. With an empty name the sources
// are tried in order and the first one returning tracks wins.
func (r *Registry) Load(ctx context.Context, name, ref string, limit int) ([]track.Track, error) {
	if name != "" {
		src, ok := r.Get(name)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownCatalog, "catalog %q", name)
		}
		tracks, err := src.Tracks(ctx, ref, limit)
		if err != nil {
			return nil, errors.Wrapf(err, "catalog %q", name)
		}
		zlog.Info().Msgf("catalog loaded: name=%s tracks=%d", name, len(tracks))
		return tracks, nil
	}

	for i, sm := range r.sources {
		zlog.Debug().Msgf("trying catalog: index=%d total=%d name=%s type=%s",
			i+1, len(r.sources), sm.Name, sm.Source.Type())

		tracks, err := sm.Source.Tracks(ctx, ref, limit)
		if err != nil {
			zlog.Warn().Msgf("catalog failed, trying next: name=%s error=%v", sm.Name, err)
			continue
		}
		if len(tracks) == 0 {
			zlog.Debug().Msgf("catalog returned no tracks: name=%s", sm.Name)
			continue
		}

		zlog.Info().Msgf("catalog loaded: name=%s tracks=%d", sm.Name, len(tracks))
		return tracks, nil
	}

	return nil, ErrNoTracks
}

// Check verifies sources that support a startup reachability check.
func (r *Registry) Check(ctx context.Context) error {
	for _, sm := range r.sources {
		checker, ok := sm.Source.(interface{ Check(context.Context) error })
		if !ok {
			continue
		}
		if err := checker.Check(ctx); err != nil {
			return errors.Wrapf(err, "catalog %q", sm.Name)
		}
	}
	return nil
}
