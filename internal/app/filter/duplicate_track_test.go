package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/flowbeat/internal/domain/track"
)

type mockQueue struct {
	tracks []track.Track
}

func (m *mockQueue) Tracks() []track.Track {
	return m.tracks
}

func TestDuplicateTrackFilter_ExactIDPasses(t *testing.T) {
	filter := NewDuplicateTrackFilter(&mockQueue{
		tracks: []track.Track{{ID: "track123", Title: "Bohemian Rhapsody", Artists: []string{"Queen"}}},
	})

	result := filter.Check(context.Background(), track.Track{
		ID:      "track123",
		Title:   "Bohemian Rhapsody",
		Artists: []string{"Queen"},
	})

	assert.True(t, result.Accepted, "exact duplicates are handled by the queue")
}

func TestDuplicateTrackFilter_OtherVersions(t *testing.T) {
	tests := []struct {
		name         string
		queued       track.Track
		requested    track.Track
		shouldReject bool
	}{
		{
			name:         "year remaster",
			queued:       track.Track{ID: "original", Title: "Bohemian Rhapsody", Artists: []string{"Queen"}},
			requested:    track.Track{ID: "remaster", Title: "Bohemian Rhapsody - 2011 Remaster", Artists: []string{"Queen"}},
			shouldReject: true,
		},
		{
			name:         "remastered in parentheses",
			queued:       track.Track{ID: "original", Title: "Yesterday", Artists: []string{"The Beatles"}},
			requested:    track.Track{ID: "remaster", Title: "Yesterday (Remastered 2023)", Artists: []string{"The Beatles"}},
			shouldReject: true,
		},
		{
			name:         "cover by different artist",
			queued:       track.Track{ID: "original", Title: "Yesterday", Artists: []string{"The Beatles"}},
			requested:    track.Track{ID: "cover", Title: "Yesterday", Artists: []string{"Paul McCartney"}},
			shouldReject: false,
		},
		{
			name:         "different songs with similar titles",
			queued:       track.Track{ID: "a", Title: "Love", Artists: []string{"John Lennon"}},
			requested:    track.Track{ID: "b", Title: "Love Song", Artists: []string{"John Lennon"}},
			shouldReject: false,
		},
		{
			name:         "radio edit",
			queued:       track.Track{ID: "album", Title: "Stairway to Heaven", Artists: []string{"Led Zeppelin"}},
			requested:    track.Track{ID: "radio", Title: "Stairway to Heaven (Radio Edit)", Artists: []string{"Led Zeppelin"}},
			shouldReject: true,
		},
		{
			name:         "live take",
			queued:       track.Track{ID: "studio", Title: "Hotel California", Artists: []string{"Eagles"}},
			requested:    track.Track{ID: "live", Title: "Hotel California - Live at the Forum", Artists: []string{"Eagles"}},
			shouldReject: true,
		},
		{
			name:         "two different remasters",
			queued:       track.Track{ID: "r2011", Title: "Let It Be - 2011 Remaster", Artists: []string{"The Beatles"}},
			requested:    track.Track{ID: "r2023", Title: "Let It Be (Remastered 2023)", Artists: []string{"The Beatles"}},
			shouldReject: true,
		},
		{
			name:         "remix is a different track",
			queued:       track.Track{ID: "original", Title: "Le Freak", Artists: []string{"CHIC"}},
			requested:    track.Track{ID: "remix", Title: "Le Freak (Oliver Heldens Remix)", Artists: []string{"CHIC"}},
			shouldReject: false,
		},
		{
			name:         "live inside a word is kept",
			queued:       track.Track{ID: "a", Title: "Alive", Artists: []string{"Pearl Jam"}},
			requested:    track.Track{ID: "b", Title: "A", Artists: []string{"Pearl Jam"}},
			shouldReject: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := NewDuplicateTrackFilter(&mockQueue{tracks: []track.Track{tt.queued}})

			result := filter.Check(context.Background(), tt.requested)

			if tt.shouldReject {
				assert.False(t, result.Accepted)
				assert.Equal(t, "duplicate_track", result.Code)
			} else {
				assert.True(t, result.Accepted)
			}
		})
	}
}

func TestDuplicateTrackFilter_EmptyQueue(t *testing.T) {
	filter := NewDuplicateTrackFilter(&mockQueue{})

	result := filter.Check(context.Background(), track.Track{ID: "x", Title: "Any Song", Artists: []string{"Any Artist"}})

	assert.True(t, result.Accepted)
}

func TestDuplicateTrackFilter_AppliesTo(t *testing.T) {
	filter := NewDuplicateTrackFilter(&mockQueue{})

	assert.True(t, filter.AppliesTo(OriginUser))
	assert.False(t, filter.AppliesTo(OriginCatalog))
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Bohemian Rhapsody", "bohemian rhapsody"},
		{"Bohemian Rhapsody - 2011 Remaster", "bohemian rhapsody"},
		{"Yesterday (Remastered 2023)", "yesterday"},
		{"Hotel California [Remastered]", "hotel california"},
		{"Stairway to Heaven (Radio Edit)", "stairway to heaven"},
		{"Imagine - Live", "imagine"},
		{"Let It Be (Single Version)", "let it be"},
		{"Hey Jude - Remastered Version", "hey jude"},
		{"Come Together (2019 Mix)", "come together (2019 mix)"},
		{"Alive", "alive"},
		{"   Extra   Spaces   ", "extra spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeTitle(tt.input))
		})
	}
}

func TestIsSameArtist(t *testing.T) {
	tests := []struct {
		name     string
		a, b     track.Track
		expected bool
	}{
		{name: "same artist", a: track.Track{Artists: []string{"Queen"}}, b: track.Track{Artists: []string{"Queen"}}, expected: true},
		{name: "case insensitive", a: track.Track{Artists: []string{"Queen"}}, b: track.Track{Artists: []string{"queen"}}, expected: true},
		{name: "different artists", a: track.Track{Artists: []string{"The Beatles"}}, b: track.Track{Artists: []string{"Paul McCartney"}}, expected: false},
		{name: "no artists", a: track.Track{}, b: track.Track{Artists: []string{"Queen"}}, expected: false},
		{name: "compares main artist only", a: track.Track{Artists: []string{"Queen", "David Bowie"}}, b: track.Track{Artists: []string{"Queen", "Someone Else"}}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isSameArtist(tt.a, tt.b))
		})
	}
}
