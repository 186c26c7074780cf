package filter

import (
	"context"

	"github.com/osa030/flowbeat/internal/domain/track"
)

// PlayableFilter rejects tracks without a streamable media URL.
type PlayableFilter struct{}

// NewPlayableFilter creates a new playable filter.
func NewPlayableFilter() *PlayableFilter {
	return &PlayableFilter{}
}

func (f *PlayableFilter) Name() string {
	return "playable_filter"
}

func (f *PlayableFilter) Description() string {
	return "Rejects tracks without an http(s) media URL"
}

func (f *PlayableFilter) ReturnCodes() []string {
	return []string{"not_playable"}
}

func (f *PlayableFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *PlayableFilter) AppliesTo(origin Origin) bool {
	return true
}

func (f *PlayableFilter) Check(ctx context.Context, t track.Track) Result {
	if !t.HasPlayableURL() {
		return Reject("not_playable")
	}
	return Accept()
}

func init() {
	Register("playable_filter", func() Filter {
		return &PlayableFilter{}
	})
}
