// Package catalog resolves configured track sources into tracks that can
// be queued.
package catalog

import (
	"context"

	"github.com/osa030/flowbeat/internal/domain/playlist"
	"github.com/osa030/flowbeat/internal/domain/track"
)

// Source is the interface for catalog track sources.
type Source interface {
	// Tracks fetches tracks in catalog order.
	// ref: a source-specific reference (e.g. a playlist URL); "" selects the
	// configured default
	// limit: maximum number of tracks; 0 uses the configured limit
	Tracks(ctx context.Context, ref string, limit int) ([]track.Track, error)

	// Type returns the source type (used in config).
	Type() string
}

// FlowBeatClient defines the FlowBeat operations needed by catalog sources.
type FlowBeatClient interface {
	ListAllMusic(ctx context.Context, limit int) ([]track.Track, error)
}

// SpotifyClient defines the Spotify operations needed by catalog sources.
type SpotifyClient interface {
	GetPlaylist(ctx context.Context, playlistURL string, limit int) (*playlist.Playlist, error)
	GetTrack(ctx context.Context, trackID string) (*track.Track, error)
	CheckPlaylistExists(ctx context.Context, playlistURL string) error
}
