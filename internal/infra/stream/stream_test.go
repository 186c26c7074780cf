package stream

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/flowbeat/internal/app/loop"
	"github.com/osa030/flowbeat/internal/app/transport"
)

// id3v1 builds a 128 byte ID3v1 trailer.
func id3v1(title, artist string) []byte {
	field := func(s string, n int) []byte {
		b := make([]byte, n)
		copy(b, s)
		return b
	}
	var buf bytes.Buffer
	buf.WriteString("TAG")
	buf.Write(field(title, 30))
	buf.Write(field(artist, 30))
	buf.Write(field("", 30)) // album
	buf.Write(field("2024", 4))
	buf.Write(field("", 30)) // comment
	buf.WriteByte(12)        // genre
	return buf.Bytes()
}

func serve(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/track.mp3", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "flowbeat-player", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write(body)
	})
	mux.HandleFunc("/missing.mp3", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testBackend() *Backend {
	return NewBackend(Config{Tick: 5 * time.Millisecond, ChunkBytes: 1024, FallbackKbps: 128})
}

// collect drains events until want arrives or the deadline passes.
func collect(t *testing.T, res transport.Resource, want transport.EventType) []transport.Event {
	t.Helper()
	var seen []transport.Event
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-res.Events():
			require.True(t, ok, "events closed before %s", want)
			seen = append(seen, ev)
			if ev.Type == want {
				return seen
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s, saw %v", want, seen)
		}
	}
}

func types(evs []transport.Event) []transport.EventType {
	out := make([]transport.EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

func TestBackend_OpenRejectsUnsupportedURL(t *testing.T) {
	b := testBackend()
	for _, u := range []string{"", "file:///tmp/a.mp3", "/relative.mp3", "http://"} {
		_, err := b.Open(u, transport.Hint{})
		assert.Error(t, err, u)
	}
}

func TestResource_PlaysToEnd(t *testing.T) {
	srv := serve(t, make([]byte, 4096))
	res, err := testBackend().Open(srv.URL+"/track.mp3", transport.Hint{Duration: 50 * time.Millisecond})
	require.NoError(t, err)
	defer res.Close()

	require.NoError(t, res.Play(context.Background()))
	evs := collect(t, res, transport.EventEnded)

	assert.Contains(t, types(evs), transport.EventLoadedMetadata)
	assert.Equal(t, 50*time.Millisecond, res.Duration())
	assert.Equal(t, 50*time.Millisecond, res.Position())
	assert.Equal(t, []transport.TimeRange{{Start: 0, End: 50 * time.Millisecond}}, res.Buffered())
}

func TestResource_EstimatesDurationWithoutHint(t *testing.T) {
	// 16000 bytes at 128 kbps is one second.
	srv := serve(t, make([]byte, 16000))
	res, err := testBackend().Open(srv.URL+"/track.mp3", transport.Hint{})
	require.NoError(t, err)
	defer res.Close()

	collect(t, res, transport.EventLoadedMetadata)
	assert.Equal(t, time.Second, res.Duration())
}

func TestResource_DownloadFailureFailsPlay(t *testing.T) {
	srv := serve(t, nil)
	res, err := testBackend().Open(srv.URL+"/missing.mp3", transport.Hint{})
	require.NoError(t, err)
	defer res.Close()

	evs := collect(t, res, transport.EventError)
	assert.Error(t, evs[len(evs)-1].Err)
	assert.ErrorIs(t, res.Play(context.Background()), transport.ErrPlaybackFailed)
}

func TestController_MissingMediaReportedOnce(t *testing.T) {
	srv := serve(t, nil)

	l := loop.New(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)
	defer l.Stop()

	var mu sync.Mutex
	var hookErrs []error
	ctrl := transport.NewController(testBackend(), l, transport.Hooks{
		OnError: func(err error) {
			mu.Lock()
			defer mu.Unlock()
			hookErrs = append(hookErrs, err)
		},
	}, 1)

	var loadErr error
	var result <-chan error
	require.NoError(t, l.Do(ctx, func() {
		loadErr = ctrl.LoadTrack(srv.URL+"/missing.mp3", transport.Hint{})
		result = ctrl.Play()
	}))
	require.NoError(t, loadErr)

	select {
	case err := <-result:
		assert.ErrorIs(t, err, transport.ErrPlaybackFailed)
		assert.NotErrorIs(t, err, transport.ErrPlaybackRejected)
	case <-time.After(2 * time.Second):
		t.Fatal("play result not resolved")
	}

	var state transport.State
	require.Eventually(t, func() bool {
		require.NoError(t, l.Do(ctx, func() { state = ctrl.State() }))
		return state == transport.StateError
	}, time.Second, 5*time.Millisecond)

	// Let the resource's error event drain through the loop.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, l.Do(ctx, func() {}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, hookErrs, 1)
	assert.ErrorIs(t, hookErrs[0], transport.ErrPlaybackFailed)
	assert.NotErrorIs(t, hookErrs[0], transport.ErrPlaybackRejected)
}

func TestResource_PauseAndResume(t *testing.T) {
	srv := serve(t, make([]byte, 4096))
	res, err := testBackend().Open(srv.URL+"/track.mp3", transport.Hint{Duration: time.Hour})
	require.NoError(t, err)
	defer res.Close()

	require.NoError(t, res.Play(context.Background()))
	require.Eventually(t, func() bool { return res.Position() > 0 }, time.Second, time.Millisecond)

	res.Pause()
	time.Sleep(20 * time.Millisecond)
	paused := res.Position()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, paused, res.Position())

	require.NoError(t, res.Play(context.Background()))
	require.Eventually(t, func() bool { return res.Position() > paused }, time.Second, time.Millisecond)
}

func TestResource_SeekClamps(t *testing.T) {
	srv := serve(t, make([]byte, 4096))
	res, err := testBackend().Open(srv.URL+"/track.mp3", transport.Hint{Duration: time.Minute})
	require.NoError(t, err)
	defer res.Close()

	res.Seek(-time.Second)
	assert.Equal(t, time.Duration(0), res.Position())
	res.Seek(2 * time.Minute)
	assert.Equal(t, time.Minute, res.Position())
	res.Seek(10 * time.Second)
	assert.Equal(t, 10*time.Second, res.Position())
}

func TestResource_PlayAfterClose(t *testing.T) {
	srv := serve(t, make([]byte, 4096))
	res, err := testBackend().Open(srv.URL+"/track.mp3", transport.Hint{})
	require.NoError(t, err)

	require.NoError(t, res.Close())
	require.NoError(t, res.Close())

	assert.ErrorIs(t, res.Play(context.Background()), ErrClosed)
	for range res.Events() {
	}
}

func TestResource_PlayHonorsContext(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	res, err := testBackend().Open(srv.URL+"/slow.mp3", transport.Hint{})
	require.NoError(t, err)
	defer res.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, res.Play(ctx), context.DeadlineExceeded)
}

func TestResource_ReadsTags(t *testing.T) {
	body := append(make([]byte, 2048), id3v1("Morning", "Flow")...)
	srv := serve(t, body)
	res, err := testBackend().Open(srv.URL+"/track.mp3", transport.Hint{Duration: time.Second})
	require.NoError(t, err)
	defer res.Close()

	stream := res.(*Resource)
	require.Eventually(t, func() bool { return stream.Metadata() != nil }, time.Second, time.Millisecond)
	assert.Equal(t, "Morning", stream.Metadata().Title())
	assert.Equal(t, "Flow", stream.Metadata().Artist())
}
