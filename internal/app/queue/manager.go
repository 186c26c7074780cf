// Package queue provides the playback queue and its selection policy.
//
// Manager performs no I/O and never fails: out-of-range indices and unknown
// identifiers are absorbed as no-ops. It is not safe for concurrent use; the
// player mutates it from its event loop only.
package queue

import (
	"math/rand/v2"
	"time"

	"github.com/osa030/flowbeat/internal/domain/track"
)

// NoIndex is the current index when no track is selected.
const NoIndex = -1

// Manager owns the ordered queue, the current index and the play mode.
type Manager struct {
	tracks  []track.Track
	current int
	mode    PlayMode

	// intn returns a uniform integer in [0, n).
	intn func(n int) int
}

// Option configures a Manager.
type Option func(*Manager)

// WithRand sets the random source used by shuffle mode.
func WithRand(intn func(n int) int) Option {
	return func(m *Manager) {
		m.intn = intn
	}
}

// WithMode sets the initial play mode.
func WithMode(mode PlayMode) Option {
	return func(m *Manager) {
		m.mode = mode
	}
}

// NewManager creates an empty queue in sequential mode.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		tracks:  make([]track.Track, 0),
		current: NoIndex,
		mode:    ModeSequential,
		intn:    rand.IntN,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetQueue replaces the queue. The start index selects the current track
// when it is in bounds; otherwise nothing is selected. Later duplicates of an
// identifier are dropped.
func (m *Manager) SetQueue(tracks []track.Track, startIndex int) {
	seen := make(map[string]bool, len(tracks))
	m.tracks = make([]track.Track, 0, len(tracks))
	for _, t := range tracks {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		m.tracks = append(m.tracks, t)
	}

	m.current = NoIndex
	if startIndex >= 0 && startIndex < len(tracks) {
		m.current = m.IndexOf(tracks[startIndex].ID)
	}
}

// Append adds t at the end unless its identifier is already queued.
// When the queue was empty, t becomes current. Reports whether t was added.
func (m *Manager) Append(t track.Track) bool {
	if m.IndexOf(t.ID) != NoIndex {
		return false
	}
	wasEmpty := len(m.tracks) == 0
	m.tracks = append(m.tracks, t)
	if wasEmpty {
		m.current = 0
	}
	return true
}

// Remove deletes the track with the given identifier. Removing the current
// track selects the track that slides into its slot, or the new last track
// when it was last. Reports whether a track was removed.
func (m *Manager) Remove(id string) bool {
	idx := m.IndexOf(id)
	if idx == NoIndex {
		return false
	}

	m.tracks = append(m.tracks[:idx], m.tracks[idx+1:]...)

	switch {
	case len(m.tracks) == 0:
		m.current = NoIndex
	case idx == m.current:
		if m.current >= len(m.tracks) {
			m.current = max(len(m.tracks)-1, 0)
		}
	case idx < m.current:
		m.current--
	}
	return true
}

// Clear empties the queue and deselects.
func (m *Manager) Clear() {
	m.tracks = make([]track.Track, 0)
	m.current = NoIndex
}

// SelectAndPlay makes t current, appending it first when it is not queued.
// Returns the new current index.
func (m *Manager) SelectAndPlay(t track.Track) int {
	idx := m.IndexOf(t.ID)
	if idx == NoIndex {
		m.tracks = append(m.tracks, t)
		idx = len(m.tracks) - 1
	}
	m.current = idx
	return idx
}

// Advance moves to the next index under the current play mode.
// Returns false, leaving state unchanged, when there is no next track.
func (m *Manager) Advance() (int, bool) {
	return m.step(1)
}

// Retreat moves to the previous index under the current play mode.
// Returns false, leaving state unchanged, when there is no previous track.
func (m *Manager) Retreat() (int, bool) {
	return m.step(-1)
}

func (m *Manager) step(delta int) (int, bool) {
	next, ok := m.peek(delta)
	if !ok {
		return m.current, false
	}
	m.current = next
	return next, true
}

// peek computes the index step would move to without mutating.
func (m *Manager) peek(delta int) (int, bool) {
	n := len(m.tracks)
	if n == 0 {
		return NoIndex, false
	}

	switch m.mode {
	case ModeRepeatOne:
		if !m.valid(m.current) {
			return NoIndex, false
		}
		return m.current, true

	case ModeShuffle:
		if n == 1 {
			return 0, true
		}
		if !m.valid(m.current) {
			return m.intn(n), true
		}
		// Uniform over the n-1 other slots.
		r := m.intn(n - 1)
		if r >= m.current {
			r++
		}
		return r, true

	default:
		next := m.current + delta
		if !m.valid(next) {
			return NoIndex, false
		}
		return next, true
	}
}

// ToggleMode advances the play mode through its cycle and returns it.
func (m *Manager) ToggleMode() PlayMode {
	m.mode = m.mode.Next()
	return m.mode
}

// SetMode sets the play mode directly.
func (m *Manager) SetMode(mode PlayMode) {
	m.mode = mode
}

// Mode returns the play mode.
func (m *Manager) Mode() PlayMode {
	return m.mode
}

// JumpTo selects index directly. Out-of-range indices are ignored.
func (m *Manager) JumpTo(index int) bool {
	if !m.valid(index) {
		return false
	}
	m.current = index
	return true
}

// Current returns the selected track.
func (m *Manager) Current() (track.Track, bool) {
	if !m.valid(m.current) {
		return track.Track{}, false
	}
	return m.tracks[m.current], true
}

// CurrentIndex returns the selected index, or NoIndex.
func (m *Manager) CurrentIndex() int {
	return m.current
}

// IndexOf returns the position of the track with the given identifier, or NoIndex.
func (m *Manager) IndexOf(id string) int {
	for i, t := range m.tracks {
		if t.ID == id {
			return i
		}
	}
	return NoIndex
}

// Contains reports whether a track with the given identifier is queued.
func (m *Manager) Contains(id string) bool {
	return m.IndexOf(id) != NoIndex
}

// Tracks returns a copy of the queue.
func (m *Manager) Tracks() []track.Track {
	result := make([]track.Track, len(m.tracks))
	copy(result, m.tracks)
	return result
}

// Upcoming returns a copy of the tracks after the current one.
func (m *Manager) Upcoming() []track.Track {
	if m.current+1 >= len(m.tracks) {
		return nil
	}
	start := m.current + 1
	result := make([]track.Track, len(m.tracks)-start)
	copy(result, m.tracks[start:])
	return result
}

// Len returns the number of queued tracks.
func (m *Manager) Len() int {
	return len(m.tracks)
}

// TotalDuration returns the summed duration of all queued tracks.
func (m *Manager) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range m.tracks {
		total += t.Duration
	}
	return total
}

func (m *Manager) valid(index int) bool {
	return index >= 0 && index < len(m.tracks)
}
