package transport

import (
	"cmp"
	"context"
	"math"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Errors
var (
	ErrNotLoaded        = errors.New("no track loaded")
	ErrPlaybackRejected = errors.New("playback start rejected")
	ErrPlaybackFailed   = errors.New("playback failed")
	ErrSuperseded       = errors.New("playback superseded by a newer load")
	ErrAborted          = errors.New("playback start aborted")
)

// Status is the observable playback state.
type Status struct {
	State      State         `json:"state"`
	URL        string        `json:"url,omitempty"`
	Playing    bool          `json:"playing"`
	Position   time.Duration `json:"position"`
	Duration   time.Duration `json:"duration"`
	Buffered   float64       `json:"buffered"` // Percent, 0-100
	Loading    bool          `json:"loading"`
	Buffering  bool          `json:"buffering"`
	Volume     float64       `json:"volume"`
	Generation uint64        `json:"generation"`
}

// Hooks are invoked on the scheduler's thread.
type Hooks struct {
	OnTimeUpdate func(Status)
	OnEnded      func()
	OnError      func(error)
	OnChange     func(Status)
}

// Controller owns exactly one Resource at a time. It is not safe for
// concurrent use: every method, and every hook, runs on the scheduler's
// thread.
type Controller struct {
	backend Backend
	sched   Scheduler
	hooks   Hooks

	res        Resource
	gen        uint64 // Generation of res; bumped on every load and cleanup
	stopPump   context.CancelFunc
	cancelPlay context.CancelFunc
	playSeq    uint64

	state     State
	url       string
	playing   bool
	position  time.Duration
	duration  time.Duration
	buffered  float64
	loading   bool
	buffering bool
	volume    float64
}

// NewController creates a controller with the given initial volume.
func NewController(backend Backend, sched Scheduler, hooks Hooks, volume float64) *Controller {
	return &Controller{
		backend: backend,
		sched:   sched,
		hooks:   hooks,
		state:   StateEmpty,
		volume:  clampVolume(volume),
	}
}

// LoadTrack releases the current resource and binds a new one to url.
// Events still in flight from the released resource are dropped.
func (c *Controller) LoadTrack(url string, hint Hint) error {
	c.teardown()
	c.gen++
	c.resetPlayback()
	c.url = url
	c.state = StateLoading
	c.loading = true

	res, err := c.backend.Open(url, hint)
	if err != nil {
		c.state = StateError
		c.loading = false
		err = errors.Mark(errors.Wrapf(err, "failed to open %s", url), ErrPlaybackFailed)
		zlog.Warn().Msgf("transport: load failed: gen=%d err=%v", c.gen, err)
		c.changed()
		c.fail(err)
		return err
	}

	res.SetVolume(c.volume)
	c.res = res

	ctx, cancel := context.WithCancel(context.Background())
	c.stopPump = cancel
	go c.pump(ctx, c.gen, res.Events())

	zlog.Debug().Msgf("transport: loaded: gen=%d url=%s", c.gen, url)
	c.changed()
	return nil
}

// pump forwards one resource's events to the scheduler, tagged with the
// generation they belong to.
func (c *Controller) pump(ctx context.Context, gen uint64, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !c.sched.Post(func() { c.handle(gen, ev) }) {
				return
			}
		}
	}
}

func (c *Controller) handle(gen uint64, ev Event) {
	if gen != c.gen || c.res == nil {
		zlog.Debug().Msgf("transport: dropped stale event: type=%s gen=%d current=%d", ev.Type, gen, c.gen)
		return
	}

	switch ev.Type {
	case EventTimeUpdate:
		c.position = c.res.Position()
		c.buffered = bufferedPercent(c.res.Buffered(), c.duration)
		if c.hooks.OnTimeUpdate != nil {
			c.hooks.OnTimeUpdate(c.Status())
		}

	case EventProgress:
		c.buffered = bufferedPercent(c.res.Buffered(), c.duration)

	case EventLoadedMetadata:
		c.duration = c.res.Duration()
		c.buffered = bufferedPercent(c.res.Buffered(), c.duration)
		c.loading = false
		if c.state == StateLoading {
			c.state = StateReady
		}
		c.changed()

	case EventWaiting:
		c.buffering = true
		c.changed()

	case EventCanPlay:
		c.buffering = false
		c.changed()

	case EventEnded:
		if c.state == StateEnded {
			return
		}
		c.position = 0
		c.playing = false
		c.buffering = false
		c.state = StateEnded
		zlog.Debug().Msgf("transport: ended: gen=%d url=%s", gen, c.url)
		c.changed()
		if c.hooks.OnEnded != nil {
			c.hooks.OnEnded()
		}

	case EventError:
		if !c.state.Loaded() {
			return
		}
		err := ErrPlaybackFailed
		if ev.Err != nil {
			err = errors.Mark(errors.Wrap(ev.Err, "resource error"), ErrPlaybackFailed)
		}
		c.failResource(gen, err)
	}
}

// failResource moves a loaded resource to StateError and fires the error
// hook once.
func (c *Controller) failResource(gen uint64, err error) {
	c.loading = false
	c.playing = false
	c.buffering = false
	c.state = StateError
	zlog.Warn().Msgf("transport: playback failed: gen=%d url=%s err=%v", gen, c.url, err)
	c.changed()
	c.fail(err)
}

// Play requests playback of the loaded resource. The returned channel
// receives exactly one result: nil once playback runs, ErrPlaybackRejected
// when the resource refuses to start, ErrPlaybackFailed when the media could
// not be loaded, ErrAborted when a Pause intervened, or ErrSuperseded when
// another load happened first. Rejections and failures reach the error hook
// once; nothing is retried.
func (c *Controller) Play() <-chan error {
	if c.res == nil || !c.state.Loaded() {
		return resolved(ErrNotLoaded)
	}
	if c.playing {
		return resolved(nil)
	}

	if c.cancelPlay != nil {
		c.cancelPlay()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelPlay = cancel
	c.playSeq++

	result := make(chan error, 1)
	gen, seq, res := c.gen, c.playSeq, c.res
	go func() {
		err := res.Play(ctx)
		if !c.sched.Post(func() { c.settlePlay(ctx, gen, seq, err, result) }) {
			cancel()
			result <- ErrSuperseded
			close(result)
		}
	}()
	return result
}

func (c *Controller) settlePlay(ctx context.Context, gen, seq uint64, err error, result chan<- error) {
	defer close(result)

	if gen != c.gen {
		result <- ErrSuperseded
		return
	}
	if seq == c.playSeq {
		c.cancelPlay = nil
	}
	if ctx.Err() != nil {
		result <- ErrAborted
		return
	}
	if err != nil && (c.state == StateError || errors.Is(err, ErrPlaybackFailed)) {
		// Load failure rather than a refused start; reported once.
		err = errors.Mark(errors.Wrap(err, "play"), ErrPlaybackFailed)
		if c.state.Loaded() {
			c.failResource(gen, err)
		}
		result <- err
		return
	}
	if err != nil {
		c.playing = false
		err = errors.Mark(errors.Wrap(err, "play"), ErrPlaybackRejected)
		zlog.Warn().Msgf("transport: play rejected: gen=%d url=%s err=%v", gen, c.url, err)
		c.changed()
		c.fail(err)
		result <- err
		return
	}
	if !c.state.Loaded() {
		// Ended or failed while the start was pending.
		result <- ErrNotLoaded
		return
	}

	c.playing = true
	c.loading = false
	c.state = StatePlaying
	c.changed()
	result <- nil
}

// Pause pauses playback. It cancels a pending Play and is idempotent.
func (c *Controller) Pause() {
	if c.cancelPlay != nil {
		c.cancelPlay()
		c.cancelPlay = nil
	}
	if c.res != nil {
		c.res.Pause()
	}

	wasPlaying := c.playing
	c.playing = false
	if c.state == StatePlaying {
		c.state = StatePaused
	}
	if wasPlaying {
		c.changed()
	}
}

// TogglePlay pauses when playing, otherwise plays.
func (c *Controller) TogglePlay() <-chan error {
	if c.playing {
		c.Pause()
		return resolved(nil)
	}
	return c.Play()
}

// Seek moves the position to t clamped to [0, duration]. With an unknown
// duration the position becomes 0. The observable position is updated
// immediately.
func (c *Controller) Seek(t time.Duration) {
	target := max(t, 0)
	target = min(target, max(c.duration, 0))

	if c.res != nil {
		c.res.Seek(target)
	}
	c.position = target
	c.changed()
}

// SetVolume sets the volume clamped to [0, 1]. The value is kept for
// resources loaded later.
func (c *Controller) SetVolume(v float64) {
	if math.IsNaN(v) {
		return
	}
	c.volume = clampVolume(v)
	if c.res != nil {
		c.res.SetVolume(c.volume)
	}
	c.changed()
}

// Cleanup releases the resource and resets the observable state. The volume
// is kept.
func (c *Controller) Cleanup() {
	c.teardown()
	c.gen++
	c.resetPlayback()
	c.url = ""
	c.state = StateEmpty
	c.changed()
}

// Status returns the observable state.
func (c *Controller) Status() Status {
	return Status{
		State:      c.state,
		URL:        c.url,
		Playing:    c.playing,
		Position:   c.position,
		Duration:   c.duration,
		Buffered:   c.buffered,
		Loading:    c.loading,
		Buffering:  c.buffering,
		Volume:     c.volume,
		Generation: c.gen,
	}
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Playing reports whether playback is running.
func (c *Controller) Playing() bool {
	return c.playing
}

// Volume returns the volume applied to loaded resources.
func (c *Controller) Volume() float64 {
	return c.volume
}

// teardown stops and releases the current resource and detaches its pump.
func (c *Controller) teardown() {
	if c.cancelPlay != nil {
		c.cancelPlay()
		c.cancelPlay = nil
	}
	if c.stopPump != nil {
		c.stopPump()
		c.stopPump = nil
	}
	if c.res != nil {
		c.res.Pause()
		if err := c.res.Close(); err != nil {
			zlog.Debug().Msgf("transport: close resource: gen=%d err=%v", c.gen, err)
		}
		c.res = nil
	}
}

func (c *Controller) resetPlayback() {
	c.playing = false
	c.position = 0
	c.duration = 0
	c.buffered = 0
	c.loading = false
	c.buffering = false
}

func (c *Controller) changed() {
	if c.hooks.OnChange != nil {
		c.hooks.OnChange(c.Status())
	}
}

func (c *Controller) fail(err error) {
	if c.hooks.OnError != nil {
		c.hooks.OnError(err)
	}
}

func resolved(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}

func clampVolume(v float64) float64 {
	return min(max(v, 0), 1)
}

// bufferedPercent returns the end of the contiguous buffered span starting
// at zero, as a percentage of duration.
func bufferedPercent(ranges []TimeRange, duration time.Duration) float64 {
	if duration <= 0 || len(ranges) == 0 {
		return 0
	}

	sorted := slices.Clone(ranges)
	slices.SortFunc(sorted, func(a, b TimeRange) int {
		return cmp.Compare(a.Start, b.Start)
	})

	var end time.Duration
	for _, r := range sorted {
		if r.Start > end {
			break
		}
		end = max(end, r.End)
	}

	return min(float64(end)/float64(duration)*100, 100)
}
