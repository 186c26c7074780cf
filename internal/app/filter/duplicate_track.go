package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/flowbeat/internal/domain/track"
)

// QueueReader gives read access to the tracks currently queued.
type QueueReader interface {
	Tracks() []track.Track
}

// DuplicateTrackFilter rejects other versions of a track that is already
// queued: remasters, edits and live takes by the same main artist. Covers
// (same title, different artist) pass. Exact ID matches pass too; the queue
// itself turns them into no-ops.
type DuplicateTrackFilter struct {
	queue QueueReader
}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter(queue QueueReader) *DuplicateTrackFilter {
	return &DuplicateTrackFilter{
		queue: queue,
	}
}

func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

func (f *DuplicateTrackFilter) Description() string {
	return "Rejects another version (remaster, edit, live) of a track already queued; covers are allowed"
}

func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// AppliesTo limits the filter to single additions. A catalog load replaces
// the whole queue, so there is nothing to compare against.
func (f *DuplicateTrackFilter) AppliesTo(origin Origin) bool {
	return origin == OriginUser
}

func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *DuplicateTrackFilter) Check(ctx context.Context, requested track.Track) Result {
	if f.queue == nil {
		return Accept()
	}

	for _, queued := range f.queue.Tracks() {
		if queued.ID == requested.ID {
			continue
		}
		if isOtherVersion(queued, requested) {
			return Reject("duplicate_track")
		}
	}
	return Accept()
}

var (
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s*-\s*live\b.*$`),         // "- Live at Wembley"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}
	spaces = regexp.MustCompile(`\s+`)
)

// isOtherVersion reports whether two tracks are versions of the same song.
func isOtherVersion(a, b track.Track) bool {
	if normalizeTitle(a.Title) != normalizeTitle(b.Title) {
		return false
	}
	return isSameArtist(a, b)
}

// normalizeTitle strips remaster and version annotations.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(title)
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	normalized = spaces.ReplaceAllString(strings.TrimSpace(normalized), " ")
	return strings.TrimRight(normalized, " -")
}

// isSameArtist compares main artists, case-insensitively.
func isSameArtist(a, b track.Track) bool {
	if a.MainArtist() == "" || b.MainArtist() == "" {
		return false
	}
	return strings.EqualFold(a.MainArtist(), b.MainArtist())
}
