// Package playlist provides the Playlist domain entity.
package playlist

import (
	"time"

	"github.com/osa030/flowbeat/internal/domain/track"
)

// Playlist is an ordered, named list of tracks fetched from a catalog.
type Playlist struct {
	ID     string        // Catalog playlist ID
	Name   string        // Playlist name
	URL    string        // Catalog URL
	Tracks []track.Track // Tracks in playlist order
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// TotalDuration returns the summed duration of all tracks.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range p.Tracks {
		total += t.Duration
	}
	return total
}

// Playable returns the tracks that carry a usable media URL.
func (p *Playlist) Playable() []track.Track {
	result := make([]track.Track, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		if t.HasPlayableURL() {
			result = append(result, t)
		}
	}
	return result
}
