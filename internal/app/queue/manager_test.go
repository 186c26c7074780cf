package queue

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/flowbeat/internal/domain/track"
)

func makeTracks(n int) []track.Track {
	tracks := make([]track.Track, n)
	for i := range tracks {
		tracks[i] = track.Track{
			ID:       fmt.Sprintf("t%d", i+1),
			Title:    fmt.Sprintf("Track %d", i+1),
			Duration: time.Minute,
			MediaURL: fmt.Sprintf("https://cdn.example.com/t%d.mp3", i+1),
		}
	}
	return tracks
}

func currentID(t *testing.T, m *Manager) string {
	t.Helper()
	cur, ok := m.Current()
	if !ok {
		return ""
	}
	return cur.ID
}

func TestManager_SetQueue(t *testing.T) {
	tracks := makeTracks(3)

	tests := []struct {
		name        string
		startIndex  int
		wantIndex   int
		wantCurrent string
	}{
		{name: "first", startIndex: 0, wantIndex: 0, wantCurrent: "t1"},
		{name: "last", startIndex: 2, wantIndex: 2, wantCurrent: "t3"},
		{name: "negative", startIndex: -1, wantIndex: NoIndex, wantCurrent: ""},
		{name: "past end", startIndex: 3, wantIndex: NoIndex, wantCurrent: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			m.SetQueue(tracks, tt.startIndex)

			assert.Equal(t, 3, m.Len())
			assert.Equal(t, tt.wantIndex, m.CurrentIndex())
			assert.Equal(t, tt.wantCurrent, currentID(t, m))
		})
	}
}

func TestManager_SetQueue_DropsDuplicates(t *testing.T) {
	tracks := makeTracks(3)
	withDup := []track.Track{tracks[0], tracks[1], tracks[0], tracks[2]}

	m := NewManager()
	m.SetQueue(withDup, 3)

	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 2, m.CurrentIndex())
	assert.Equal(t, "t3", currentID(t, m))

	// Start index pointing at a dropped duplicate selects the surviving copy.
	m.SetQueue(withDup, 2)
	assert.Equal(t, 0, m.CurrentIndex())
}

func TestManager_SetQueue_CopiesInput(t *testing.T) {
	tracks := makeTracks(2)
	m := NewManager()
	m.SetQueue(tracks, 0)

	tracks[0].Title = "mutated"
	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "Track 1", cur.Title)
}

func TestManager_Append(t *testing.T) {
	tracks := makeTracks(2)

	t.Run("empty queue auto selects", func(t *testing.T) {
		m := NewManager()
		assert.True(t, m.Append(tracks[0]))
		assert.Equal(t, 0, m.CurrentIndex())
		assert.Equal(t, "t1", currentID(t, m))
	})

	t.Run("non empty queue keeps selection", func(t *testing.T) {
		m := NewManager()
		m.SetQueue(tracks[:1], 0)
		assert.True(t, m.Append(tracks[1]))
		assert.Equal(t, 2, m.Len())
		assert.Equal(t, 0, m.CurrentIndex())
	})

	t.Run("duplicate is a no-op", func(t *testing.T) {
		m := NewManager()
		m.SetQueue(tracks, 1)
		assert.False(t, m.Append(tracks[0]))
		assert.Equal(t, 2, m.Len())
		assert.Equal(t, 1, m.CurrentIndex())
	})

	t.Run("after set queue without selection", func(t *testing.T) {
		m := NewManager()
		m.SetQueue(tracks[:1], -1)
		m.Append(tracks[1])
		assert.Equal(t, NoIndex, m.CurrentIndex())
	})
}

func TestManager_Remove(t *testing.T) {
	tests := []struct {
		name        string
		size        int
		start       int
		removeID    string
		wantRemoved bool
		wantLen     int
		wantIndex   int
		wantCurrent string
	}{
		{
			name: "current in the middle selects successor", size: 3, start: 1, removeID: "t2",
			wantRemoved: true, wantLen: 2, wantIndex: 1, wantCurrent: "t3",
		},
		{
			name: "current last selects new last", size: 3, start: 2, removeID: "t3",
			wantRemoved: true, wantLen: 2, wantIndex: 1, wantCurrent: "t2",
		},
		{
			name: "before current keeps logical track", size: 3, start: 2, removeID: "t1",
			wantRemoved: true, wantLen: 2, wantIndex: 1, wantCurrent: "t3",
		},
		{
			name: "after current leaves index", size: 3, start: 0, removeID: "t3",
			wantRemoved: true, wantLen: 2, wantIndex: 0, wantCurrent: "t1",
		},
		{
			name: "only track empties queue", size: 1, start: 0, removeID: "t1",
			wantRemoved: true, wantLen: 0, wantIndex: NoIndex, wantCurrent: "",
		},
		{
			name: "absent id", size: 3, start: 1, removeID: "zzz",
			wantRemoved: false, wantLen: 3, wantIndex: 1, wantCurrent: "t2",
		},
		{
			name: "empty queue", size: 0, start: 0, removeID: "t1",
			wantRemoved: false, wantLen: 0, wantIndex: NoIndex, wantCurrent: "",
		},
		{
			name: "nothing selected", size: 2, start: -1, removeID: "t1",
			wantRemoved: true, wantLen: 1, wantIndex: NoIndex, wantCurrent: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			m.SetQueue(makeTracks(tt.size), tt.start)

			assert.Equal(t, tt.wantRemoved, m.Remove(tt.removeID))
			assert.Equal(t, tt.wantLen, m.Len())
			assert.Equal(t, tt.wantIndex, m.CurrentIndex())
			assert.Equal(t, tt.wantCurrent, currentID(t, m))
		})
	}
}

func TestManager_Clear(t *testing.T) {
	m := NewManager()
	m.SetQueue(makeTracks(3), 1)
	m.Clear()

	assert.Zero(t, m.Len())
	assert.Equal(t, NoIndex, m.CurrentIndex())
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestManager_SelectAndPlay(t *testing.T) {
	tracks := makeTracks(4)

	m := NewManager()
	m.SetQueue(tracks[:3], 0)

	assert.Equal(t, 2, m.SelectAndPlay(tracks[2]))
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, "t3", currentID(t, m))

	assert.Equal(t, 3, m.SelectAndPlay(tracks[3]))
	assert.Equal(t, 4, m.Len())
	assert.Equal(t, "t4", currentID(t, m))
}

func TestManager_Sequential(t *testing.T) {
	m := NewManager()
	m.SetQueue(makeTracks(3), 0)

	idx, ok := m.Advance()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = m.Advance()
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	// At the end: no next and no mutation.
	_, ok = m.Advance()
	assert.False(t, ok)
	assert.Equal(t, 2, m.CurrentIndex())

	m.JumpTo(0)
	_, ok = m.Retreat()
	assert.False(t, ok)
	assert.Equal(t, 0, m.CurrentIndex())

	m.JumpTo(2)
	idx, ok = m.Retreat()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestManager_Sequential_EmptyQueue(t *testing.T) {
	m := NewManager()

	_, ok := m.Advance()
	assert.False(t, ok)
	_, ok = m.Retreat()
	assert.False(t, ok)
	assert.Equal(t, NoIndex, m.CurrentIndex())
}

func TestManager_RepeatOne(t *testing.T) {
	m := NewManager(WithMode(ModeRepeatOne))
	m.SetQueue(makeTracks(3), 1)

	idx, ok := m.Advance()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = m.Retreat()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	// Nothing selected: nothing to repeat.
	m.SetQueue(makeTracks(3), -1)
	_, ok = m.Advance()
	assert.False(t, ok)
}

func TestManager_Shuffle(t *testing.T) {
	t.Run("never repeats the current index", func(t *testing.T) {
		m := NewManager(WithMode(ModeShuffle))
		m.SetQueue(makeTracks(5), 0)

		prev := m.CurrentIndex()
		for i := 0; i < 200; i++ {
			idx, ok := m.Advance()
			require.True(t, ok)
			assert.NotEqual(t, prev, idx)
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, 5)
			prev = idx
		}
	})

	t.Run("retreat also picks another index", func(t *testing.T) {
		m := NewManager(WithMode(ModeShuffle))
		m.SetQueue(makeTracks(2), 0)

		idx, ok := m.Retreat()
		assert.True(t, ok)
		assert.Equal(t, 1, idx)
	})

	t.Run("single track returns itself", func(t *testing.T) {
		m := NewManager(WithMode(ModeShuffle))
		m.SetQueue(makeTracks(1), 0)

		idx, ok := m.Advance()
		assert.True(t, ok)
		assert.Equal(t, 0, idx)
	})

	t.Run("skips over the current slot", func(t *testing.T) {
		// Deterministic draw: always the highest value.
		m := NewManager(WithMode(ModeShuffle), WithRand(func(n int) int { return n - 1 }))
		m.SetQueue(makeTracks(4), 3)

		idx, ok := m.Advance()
		assert.True(t, ok)
		assert.Equal(t, 2, idx)

		// Draw 0 with current 0 moves to 1.
		m = NewManager(WithMode(ModeShuffle), WithRand(func(int) int { return 0 }))
		m.SetQueue(makeTracks(4), 0)
		idx, _ = m.Advance()
		assert.Equal(t, 1, idx)
	})

	t.Run("nothing selected draws from all", func(t *testing.T) {
		m := NewManager(WithMode(ModeShuffle), WithRand(func(int) int { return 0 }))
		m.SetQueue(makeTracks(3), -1)

		idx, ok := m.Advance()
		assert.True(t, ok)
		assert.Equal(t, 0, idx)
	})
}

func TestManager_ToggleMode(t *testing.T) {
	m := NewManager()
	assert.Equal(t, ModeSequential, m.Mode())
	assert.Equal(t, ModeRepeatOne, m.ToggleMode())
	assert.Equal(t, ModeShuffle, m.ToggleMode())
	assert.Equal(t, ModeSequential, m.ToggleMode())
}

func TestManager_JumpTo(t *testing.T) {
	m := NewManager()
	m.SetQueue(makeTracks(3), 0)

	assert.True(t, m.JumpTo(2))
	assert.Equal(t, "t3", currentID(t, m))

	assert.False(t, m.JumpTo(3))
	assert.False(t, m.JumpTo(-1))
	assert.Equal(t, 2, m.CurrentIndex())
}

func TestManager_Upcoming(t *testing.T) {
	m := NewManager()
	m.SetQueue(makeTracks(3), 0)

	upcoming := m.Upcoming()
	require.Len(t, upcoming, 2)
	assert.Equal(t, "t2", upcoming[0].ID)

	m.JumpTo(2)
	assert.Empty(t, m.Upcoming())
}

func TestManager_TotalDuration(t *testing.T) {
	m := NewManager()
	m.SetQueue(makeTracks(3), 0)
	assert.Equal(t, 3*time.Minute, m.TotalDuration())
}

// Queue [T1,T2,T3] from index 0, sequential: three "ended" signals walk
// T1 → T2 → T3 → no next.
func TestManager_EndedScenario(t *testing.T) {
	m := NewManager()
	m.SetQueue(makeTracks(3), 0)

	seen := []string{currentID(t, m)}
	for i := 0; i < 3; i++ {
		if _, ok := m.Advance(); !ok {
			break
		}
		seen = append(seen, currentID(t, m))
	}

	assert.Equal(t, []string{"t1", "t2", "t3"}, seen)
	assert.Equal(t, 2, m.CurrentIndex())
}
