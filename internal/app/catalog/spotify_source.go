package catalog

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/flowbeat/internal/domain/track"
)

type SpotifySourceConfig struct {
	PlaylistURL string `yaml:"playlist_url" mapstructure:"playlist_url"`
	Limit       int    `yaml:"limit" mapstructure:"limit" default:"200" validate:"gte=0"`
}

// SpotifySource resolves Spotify playlists into their preview tracks.
type SpotifySource struct {
	spotify SpotifyClient
	config  *SpotifySourceConfig
}

// NewSpotifySource creates a new SpotifySource.
func NewSpotifySource(spotify SpotifyClient, settings map[string]any) (*SpotifySource, error) {
	if spotify == nil {
		return nil, errors.New("spotify client is required")
	}

	var config SpotifySourceConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("spotify source config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return &SpotifySource{spotify: spotify, config: &config}, nil
}

// Tracks fetches the playlist named by ref, or the configured playlist when
// ref is empty. A track URL or URI yields that single track.
func (s *SpotifySource) Tracks(ctx context.Context, ref string, limit int) ([]track.Track, error) {
	if isTrackRef(ref) {
		t, err := s.spotify.GetTrack(ctx, ref)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get track")
		}
		return []track.Track{*t}, nil
	}
	if ref == "" {
		ref = s.config.PlaylistURL
	}
	if ref == "" {
		return nil, errors.New("playlist URL is required")
	}
	if limit <= 0 {
		limit = s.config.Limit
	}

	pl, err := s.spotify.GetPlaylist(ctx, ref, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist")
	}
	return pl.Tracks, nil
}

// Check verifies that the configured playlist is reachable.
func (s *SpotifySource) Check(ctx context.Context) error {
	if s.config.PlaylistURL == "" {
		return nil
	}
	return s.spotify.CheckPlaylistExists(ctx, s.config.PlaylistURL)
}

func isTrackRef(ref string) bool {
	return strings.HasPrefix(ref, "spotify:track:") ||
		(strings.Contains(ref, "open.spotify.com") && strings.Contains(ref, "/track/"))
}

// Type returns the source type.
func (s *SpotifySource) Type() string {
	return "spotify"
}
