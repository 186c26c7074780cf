// Package spotify provides a read-only client for the Spotify catalog.
package spotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/osa030/flowbeat/internal/domain/playlist"
	"github.com/osa030/flowbeat/internal/domain/track"
)

// ErrInvalidPlaylist is returned when a playlist reference cannot be parsed.
var ErrInvalidPlaylist = errors.New("invalid playlist URL")

// Client is a Spotify API client authenticated with the client credentials
// grant. Only public catalog data is reachable.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
	TokenURL     string // Defaults to the Spotify accounts endpoint
	APIURL       string // Defaults to the Spotify Web API; must end with "/"
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}
	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}

	var opts []spotify.ClientOption
	if cfg.APIURL != "" {
		opts = append(opts, spotify.WithBaseURL(cfg.APIURL))
	}
	client := spotify.New(creds.Client(ctx), opts...)

	market := cfg.Market
	if market == "" {
		market = "JP"
	}

	return &Client{
		client:     client,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// GetTrack retrieves track information by ID, URL, or URI.
func (c *Client) GetTrack(ctx context.Context, trackID string) (*track.Track, error) {
	id := extractTrackID(trackID)
	if id == "" {
		return nil, errors.New("track ID is required")
	}

	var result *spotify.FullTrack
	err := c.retry(ctx, func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get track")
	}

	return c.convertTrack(result), nil
}

// GetPlaylist retrieves a playlist and its tracks. Episodes are skipped and
// at most limit tracks are returned when limit is positive.
func (c *Client) GetPlaylist(ctx context.Context, playlistURL string, limit int) (*playlist.Playlist, error) {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return nil, ErrInvalidPlaylist
	}

	result := &playlist.Playlist{
		ID:  playlistID,
		URL: c.GetPlaylistURL(playlistID),
	}

	offset := 0
	pageSize := 100
	for {
		var page *spotify.PlaylistItemPage
		err := c.retry(ctx, func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
				spotify.Limit(pageSize),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			// Only tracks; episodes carry no Track.
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				result.Tracks = append(result.Tracks, *c.convertTrack(item.Track.Track))
			}
			if limit > 0 && len(result.Tracks) >= limit {
				return result, nil
			}
		}

		if len(page.Items) < pageSize {
			break
		}
		offset += pageSize
	}

	zlog.Debug().Msgf("fetched spotify playlist: id=%s tracks=%d", playlistID, len(result.Tracks))
	return result, nil
}

// CheckPlaylistExists checks if a playlist exists without fetching all tracks.
func (c *Client) CheckPlaylistExists(ctx context.Context, playlistURL string) error {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return ErrInvalidPlaylist
	}

	err := c.retry(ctx, func() error {
		_, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(1),
			spotify.Offset(0),
			spotify.Market(c.market),
		)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "playlist does not exist or is not accessible")
	}

	return nil
}

// GetPlaylistURL returns the Spotify URL for a playlist.
func (c *Client) GetPlaylistURL(playlistID string) string {
	return fmt.Sprintf("https://open.spotify.com/playlist/%s", playlistID)
}

// convertTrack converts a Spotify FullTrack to a domain Track. The 30 second
// preview is the only audio the Web API exposes, so it becomes the media URL;
// tracks without one are left for the playable filter to reject.
func (c *Client) convertTrack(t *spotify.FullTrack) *track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	var albumArt string
	if len(t.Album.Images) > 0 {
		albumArt = t.Album.Images[0].URL
	}

	duration := time.Duration(t.Duration) * time.Millisecond
	if t.PreviewURL != "" && duration > previewLength {
		duration = previewLength
	}

	return &track.Track{
		ID:          string(t.ID),
		Title:       t.Name,
		Artists:     artists,
		Album:       t.Album.Name,
		AlbumArtURL: albumArt,
		Duration:    duration,
		MediaURL:    t.PreviewURL,
		Source:      track.SourceSpotify,
	}
}

const previewLength = 30 * time.Second

// retry retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry aborted")
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	return extractID(input, "playlist")
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) string {
	return extractID(input, "track")
}

// extractID handles "spotify:<kind>:<id>", open.spotify.com URLs (including
// intl-XX prefixes) and bare IDs.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)
	if uri := "spotify:" + kind + ":"; strings.HasPrefix(input, uri) {
		return strings.TrimPrefix(input, uri)
	}

	segment := "/" + kind + "/"
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, segment) {
		parts := strings.Split(input, segment)
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return input
}
