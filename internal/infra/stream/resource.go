package stream

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/flowbeat/internal/app/transport"
)

// ErrClosed is returned by Play once the resource has been closed.
var ErrClosed = errors.New("stream closed")

// headSize bounds the prefix kept for tag parsing.
const headSize = 256 * 1024

// Resource is one progressively downloaded media URL.
type Resource struct {
	url    string
	cfg    Config
	client *http.Client
	events chan transport.Event

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	ready     chan struct{} // Closed once data arrived or the download failed
	readyOnce sync.Once
	closeOnce sync.Once

	mu           sync.Mutex
	closed       bool
	volume       float64
	playing      bool
	stalled      bool
	clockRunning bool
	position     time.Duration
	duration     time.Duration
	hinted       bool // Duration came from the caller
	received     int64
	total        int64 // -1 while unknown
	complete     bool
	err          error
	meta         tag.Metadata
}

func newResource(client *http.Client, cfg Config, rawURL string, hint transport.Hint) *Resource {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Resource{
		url:      rawURL,
		cfg:      cfg,
		client:   client,
		events:   make(chan transport.Event, 16),
		ctx:      ctx,
		cancel:   cancel,
		ready:    make(chan struct{}),
		volume:   1,
		duration: hint.Duration,
		hinted:   hint.Duration > 0,
		total:    -1,
	}
	r.wg.Add(1)
	go r.download()
	return r
}

func (r *Resource) download() {
	defer r.wg.Done()

	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, r.url, nil)
	if err != nil {
		r.fail(errors.Wrap(err, "failed to create request"))
		return
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		r.fail(errors.Wrap(err, "failed to request media"))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.fail(errors.Newf("unexpected media status: %d", resp.StatusCode))
		return
	}

	r.mu.Lock()
	r.total = resp.ContentLength
	if !r.hinted && r.total > 0 {
		r.duration = r.estimate(r.total)
	}
	known := r.duration
	r.mu.Unlock()
	if known > 0 {
		r.emit(transport.EventLoadedMetadata)
	}

	head := make([]byte, 0, headSize)
	buf := make([]byte, r.cfg.ChunkBytes)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if room := headSize - len(head); room > 0 {
				head = append(head, buf[:min(n, room)]...)
				if len(head) == headSize {
					r.readTags(head)
				}
			}
			r.mu.Lock()
			r.received += int64(n)
			r.mu.Unlock()
			r.markReady()
			r.tryEmit(transport.EventProgress)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			r.fail(errors.Wrap(readErr, "failed to read media"))
			return
		}
	}

	if len(head) < headSize {
		r.readTags(head)
	}

	r.mu.Lock()
	if r.received == 0 {
		r.mu.Unlock()
		r.fail(errors.New("empty media"))
		return
	}
	r.complete = true
	r.total = r.received
	if !r.hinted {
		r.duration = r.estimate(r.received)
	}
	changed := r.duration != known
	r.mu.Unlock()

	zlog.Debug().Msgf("stream downloaded: url=%s bytes=%d", r.url, r.received)
	if changed {
		r.emit(transport.EventLoadedMetadata)
	}
	r.tryEmit(transport.EventProgress)
}

func (r *Resource) readTags(head []byte) {
	m, err := tag.ReadFrom(bytes.NewReader(head))
	if err != nil {
		zlog.Debug().Msgf("stream has no readable tags: url=%s err=%v", r.url, err)
		return
	}
	r.mu.Lock()
	r.meta = m
	r.mu.Unlock()
	zlog.Debug().Msgf("stream tags: url=%s format=%s type=%s title=%s artist=%s",
		r.url, m.Format(), m.FileType(), m.Title(), m.Artist())
}

// estimate converts a byte count to media time at the fallback bitrate.
func (r *Resource) estimate(n int64) time.Duration {
	bitsPerSecond := float64(r.cfg.FallbackKbps) * 1000
	return time.Duration(float64(n*8) / bitsPerSecond * float64(time.Second))
}

// bufferedUntil returns how far playback can run on downloaded data.
// Callers hold mu.
func (r *Resource) bufferedUntil() time.Duration {
	switch {
	case r.complete:
		return r.duration
	case r.duration > 0 && r.total > 0:
		return time.Duration(float64(r.duration) * float64(r.received) / float64(r.total))
	default:
		return r.estimate(r.received)
	}
}

func (r *Resource) fail(err error) {
	if r.ctx.Err() != nil {
		return
	}
	zlog.Warn().Msgf("stream failed: url=%s err=%v", r.url, err)
	r.mu.Lock()
	r.err = err
	r.playing = false
	r.mu.Unlock()
	r.markReady()
	r.send(transport.Event{Type: transport.EventError, Err: err})
}

func (r *Resource) markReady() {
	r.readyOnce.Do(func() { close(r.ready) })
}

// emit delivers a lifecycle event, waiting for room unless the resource is
// closed.
func (r *Resource) emit(t transport.EventType) {
	r.send(transport.Event{Type: t})
}

func (r *Resource) send(ev transport.Event) {
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
	}
}

// tryEmit delivers a periodic event, dropping it when the consumer lags.
func (r *Resource) tryEmit(t transport.EventType) {
	select {
	case r.events <- transport.Event{Type: t}:
	default:
	}
}

// Play waits until media data is available and starts the clock. A failed
// download yields an error marked transport.ErrPlaybackFailed.
func (r *Resource) Play(ctx context.Context) error {
	select {
	case <-r.ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.ctx.Done():
		return ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.err != nil {
		return errors.Mark(errors.Wrap(r.err, "media unavailable"), transport.ErrPlaybackFailed)
	}
	if r.duration > 0 && r.position >= r.duration {
		r.position = 0
	}
	r.playing = true
	if !r.clockRunning {
		r.clockRunning = true
		r.wg.Add(1)
		go r.clock()
	}
	return nil
}

func (r *Resource) clock() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-r.ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now

			evs, stop := r.advance(elapsed)
			for _, t := range evs {
				if t == transport.EventTimeUpdate {
					r.tryEmit(t)
				} else {
					r.emit(t)
				}
			}
			if stop {
				return
			}
		}
	}
}

// advance moves the position by elapsed and reports the resulting events.
// The clock stops when playback is paused or ended.
func (r *Resource) advance(elapsed time.Duration) ([]transport.EventType, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.playing {
		r.clockRunning = false
		return nil, true
	}

	var evs []transport.EventType
	if !r.complete && r.position+elapsed > r.bufferedUntil() {
		if !r.stalled {
			r.stalled = true
			evs = append(evs, transport.EventWaiting)
		}
		return evs, false
	}
	if r.stalled {
		r.stalled = false
		evs = append(evs, transport.EventCanPlay)
	}

	r.position += elapsed
	if r.duration > 0 && r.position >= r.duration {
		r.position = r.duration
		r.playing = false
		r.clockRunning = false
		return append(evs, transport.EventTimeUpdate, transport.EventEnded), true
	}
	return append(evs, transport.EventTimeUpdate), false
}

// Pause stops the clock.
func (r *Resource) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing = false
}

// Seek moves the position, clamped to the known duration. Positions past the
// downloaded data stall until the download catches up.
func (r *Resource) Seek(pos time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos = max(pos, 0)
	if r.duration > 0 {
		pos = min(pos, r.duration)
	}
	r.position = pos
}

// SetVolume stores the volume, clamped to [0, 1].
func (r *Resource) SetVolume(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volume = min(max(v, 0), 1)
}

func (r *Resource) Volume() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume
}

func (r *Resource) Position() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position
}

func (r *Resource) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duration
}

// Buffered returns the single range downloaded from the start.
func (r *Resource) Buffered() []transport.TimeRange {
	r.mu.Lock()
	defer r.mu.Unlock()
	end := r.bufferedUntil()
	if end <= 0 {
		return nil
	}
	return []transport.TimeRange{{Start: 0, End: end}}
}

// Metadata returns the parsed tags, or nil when none were found.
func (r *Resource) Metadata() tag.Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meta
}

func (r *Resource) Events() <-chan transport.Event {
	return r.events
}

// Close aborts the download, stops the clock and closes the event channel.
func (r *Resource) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.playing = false
		r.mu.Unlock()

		r.cancel()
		r.wg.Wait()
		close(r.events)
	})
	return nil
}
