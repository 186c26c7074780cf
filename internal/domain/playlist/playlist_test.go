package playlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/flowbeat/internal/domain/track"
)

func samplePlaylist() *Playlist {
	return &Playlist{
		ID:   "pl-1",
		Name: "Morning",
		Tracks: []track.Track{
			{ID: "a", Duration: 3 * time.Minute, MediaURL: "https://cdn.example.com/a.mp3"},
			{ID: "b", Duration: 2 * time.Minute},
			{ID: "c", Duration: 90 * time.Second, MediaURL: "https://cdn.example.com/c.mp3"},
		},
	}
}

func TestPlaylist_TrackIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, samplePlaylist().TrackIDs())
	assert.Empty(t, (&Playlist{}).TrackIDs())
}

func TestPlaylist_TotalDuration(t *testing.T) {
	assert.Equal(t, 6*time.Minute+30*time.Second, samplePlaylist().TotalDuration())
	assert.Zero(t, (&Playlist{}).TotalDuration())
}

func TestPlaylist_Playable(t *testing.T) {
	playable := samplePlaylist().Playable()
	assert.Len(t, playable, 2)
	assert.Equal(t, "a", playable[0].ID)
	assert.Equal(t, "c", playable[1].ID)
}
