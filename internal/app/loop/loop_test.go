package loop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		l.Stop()
	})
	return l
}

func TestLoop_DoRunsInOrder(t *testing.T) {
	l := startLoop(t)

	var order []int
	for i := 0; i < 10; i++ {
		i := i
		require.True(t, l.Post(func() { order = append(order, i) }))
	}
	require.NoError(t, l.Do(context.Background(), func() {}))

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestLoop_Serializes(t *testing.T) {
	l := startLoop(t)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), func() { counter++ })
		}()
	}
	wg.Wait()

	var got int
	require.NoError(t, l.Do(context.Background(), func() { got = counter }))
	assert.Equal(t, 50, got)
}

func TestLoop_RecoversPanics(t *testing.T) {
	l := startLoop(t)

	l.Post(func() { panic("boom") })

	ran := false
	require.NoError(t, l.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestLoop_StoppedRejectsWork(t *testing.T) {
	l := New(1)
	l.Stop()

	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Do(context.Background(), func() {}), ErrStopped)

	select {
	case <-l.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestLoop_DoHonorsContext(t *testing.T) {
	l := startLoop(t)

	release := make(chan struct{})
	l.Post(func() { <-release })
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Do(ctx, func() {}), context.DeadlineExceeded)
}
