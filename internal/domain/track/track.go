// Package track provides the Track domain entity.
package track

import (
	"net/url"
	"strings"
	"time"
)

// Source identifies where a track was fetched from.
type Source string

const (
	SourceFlowBeat Source = "flowbeat"
	SourceSpotify  Source = "spotify"
	SourceDirect   Source = "direct" // Added by URL through the API
)

// Track represents a playable track. Immutable once fetched.
type Track struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Artists     []string      `json:"artists,omitempty"`
	Album       string        `json:"album,omitempty"`
	AlbumArtURL string        `json:"album_art_url,omitempty"`
	Duration    time.Duration `json:"duration"`
	MediaURL    string        `json:"media_url"`
	Source      Source        `json:"source,omitempty"`
}

// MainArtist returns the first credited artist, or "" when none is known.
func (t *Track) MainArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// HasPlayableURL reports whether the media URL is an absolute http(s) URL.
func (t *Track) HasPlayableURL() bool {
	if t.MediaURL == "" {
		return false
	}
	u, err := url.Parse(t.MediaURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// DisplayName returns "Artist - Title", or just the title when no artist is known.
func (t *Track) DisplayName() string {
	if a := t.MainArtist(); a != "" {
		return a + " - " + t.Title
	}
	return t.Title
}
