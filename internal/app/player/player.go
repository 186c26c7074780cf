// Package player runs the playback queue and the transport on a single
// event loop and exposes them through a goroutine-safe API.
package player

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/osa030/flowbeat/internal/app/filter"
	"github.com/osa030/flowbeat/internal/app/loop"
	"github.com/osa030/flowbeat/internal/app/notification"
	"github.com/osa030/flowbeat/internal/app/queue"
	"github.com/osa030/flowbeat/internal/app/transport"
	"github.com/osa030/flowbeat/internal/domain/interaction"
	"github.com/osa030/flowbeat/internal/domain/track"
	"github.com/osa030/flowbeat/internal/infra/config"
	"github.com/osa030/flowbeat/internal/infra/prefs"
)

var (
	ErrClosed     = errors.New("player closed")
	ErrEmptyQueue = errors.New("queue is empty")
	ErrNoCurrent  = errors.New("no current track")
	ErrNoNext     = errors.New("no next track")
	ErrNoPrevious = errors.New("no previous track")
	ErrNotQueued  = errors.New("track not queued")
	ErrOutOfRange = errors.New("queue index out of range")
)

// RejectedError reports a track refused by an admission filter.
type RejectedError struct {
	TrackID string
	Code    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("track %s rejected: %s", e.TrackID, e.Code)
}

// Reporter receives listener interactions. Report must not block.
type Reporter interface {
	Report(t track.Track, kind interaction.Type) bool
}

// Notifier fans notifications out to subscribers. Broadcast must not block.
type Notifier interface {
	Broadcast(n *notification.Notification)
}

// PrefsStore persists play mode and volume.
type PrefsStore interface {
	Load() prefs.Prefs
	Save(p prefs.Prefs) error
}

// Options carries the player's collaborators. Nil fields are replaced by
// no-op implementations.
type Options struct {
	Reporter Reporter
	Notifier Notifier
	Prefs    PrefsStore
	Rand     func(n int) int
}

// Snapshot is the observable player state.
type Snapshot struct {
	Transport     transport.Status `json:"transport"`
	Queue         []track.Track    `json:"queue"`
	CurrentIndex  int              `json:"current_index"`
	Current       *track.Track     `json:"current,omitempty"`
	Upcoming      []track.Track    `json:"upcoming,omitempty"` // Queue order after the current track
	Mode          queue.PlayMode   `json:"mode"`
	QueueDuration time.Duration    `json:"queue_duration"`
}

// ErrorPayload is the payload of error notifications.
type ErrorPayload struct {
	TrackID  string `json:"track_id,omitempty"`
	Message  string `json:"message"`
	Rejected bool   `json:"rejected"` // Start refused rather than failed
}

// Player is the process-wide playback state. Every public method runs its
// work on the event loop; Run must be running for them to complete.
type Player struct {
	loop      *loop.Loop
	queue     *queue.Manager
	transport *transport.Controller
	filters   *filter.Chain
	reporter  Reporter
	notifier  Notifier
	prefs     PrefsStore
	ticks     *rate.Limiter

	loadedID string // Track bound to the transport, "" when none
}

// New creates a player. Play mode and volume are restored from the prefs
// store.
func New(cfg *config.Config, backend transport.Backend, opts Options) *Player {
	p := &Player{
		loop:     loop.New(cfg.Player.LoopBufferSize),
		reporter: opts.Reporter,
		notifier: opts.Notifier,
		prefs:    opts.Prefs,
	}
	if p.reporter == nil {
		p.reporter = nopReporter{}
	}
	if p.notifier == nil {
		p.notifier = nopNotifier{}
	}
	if p.prefs == nil {
		p.prefs = prefs.NewStore("")
	}

	saved := p.prefs.Load()
	mode, ok := queue.ParsePlayMode(saved.PlayMode)
	if !ok {
		zlog.Warn().Msgf("unknown saved play mode, using %s: saved=%s", mode, saved.PlayMode)
	}
	queueOpts := []queue.Option{queue.WithMode(mode)}
	if opts.Rand != nil {
		queueOpts = append(queueOpts, queue.WithRand(opts.Rand))
	}
	p.queue = queue.NewManager(queueOpts...)

	p.transport = transport.NewController(backend, p.loop, transport.Hooks{
		OnTimeUpdate: p.onTimeUpdate,
		OnEnded:      p.onEnded,
		OnError:      p.onError,
		OnChange:     p.onChange,
	}, saved.Volume)

	p.ticks = rate.NewLimiter(rate.Every(cfg.TimeUpdateInterval()), 1)
	p.filters = p.setupFilters(cfg)

	zlog.Info().Msgf("player created: mode=%s volume=%.2f filters=%d", mode, saved.Volume, len(p.filters.Filters()))
	return p
}

// setupFilters initializes the admission filter chain.
func (p *Player) setupFilters(cfg *config.Config) *filter.Chain {
	chain := filter.NewChain(filter.NewPlayableFilter())

	if cfg.IsFilterEnabled("duplicate_track_filter") {
		chain.Add(filter.NewDuplicateTrackFilter(p.queue))
	}

	if cfg.IsFilterEnabled("duration_limit_filter") {
		f := filter.NewDurationLimitFilter()
		if err := f.ValidateConfig(cfg.FilterSettings("duration_limit_filter")); err != nil {
			zlog.Error().Msgf("failed to validate duration limit filter config: %v", err)
		} else {
			chain.Add(f)
		}
	}

	return chain
}

// Run runs the event loop until ctx is cancelled or Close is called.
func (p *Player) Run(ctx context.Context) {
	p.loop.Run(ctx)
}

// Done returns a channel closed when the event loop stops.
func (p *Player) Done() <-chan struct{} {
	return p.loop.Done()
}

// Close releases the transport and stops the event loop.
func (p *Player) Close(ctx context.Context) error {
	err := p.do(ctx, func() error {
		p.transport.Cleanup()
		p.loadedID = ""
		return nil
	})
	p.loop.Stop()
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// SetQueue replaces the queue with the admitted tracks and selects the
// track at start. Tracks refused by a filter are returned keyed by ID. With
// autoplay the selected track starts playing.
func (p *Player) SetQueue(ctx context.Context, tracks []track.Track, start int, autoplay bool) (map[string]filter.Result, error) {
	var rejected map[string]filter.Result
	var result <-chan error
	err := p.do(ctx, func() error {
		startID := ""
		if start >= 0 && start < len(tracks) {
			startID = tracks[start].ID
		}

		var accepted []track.Track
		accepted, rejected = p.filters.Partition(ctx, tracks, filter.OriginCatalog)
		for id, r := range rejected {
			zlog.Info().Msgf("track rejected by filter: id=%s code=%s", id, r.Code)
		}

		startIndex := queue.NoIndex
		for i, t := range accepted {
			if t.ID == startID {
				startIndex = i
				break
			}
		}

		p.queue.SetQueue(accepted, startIndex)
		zlog.Info().Msgf("queue replaced: tracks=%d rejected=%d current=%d", p.queue.Len(), len(rejected), p.queue.CurrentIndex())
		result = p.sync(autoplay)
		p.publish()
		return nil
	})
	if err != nil {
		// The loop may still run fn after a canceled wait.
		return nil, err
	}
	return rejected, p.await(ctx, result)
}

// Append adds t to the end of the queue. It reports false when t was
// already queued. Appending to an empty queue selects t and starts it.
func (p *Player) Append(ctx context.Context, t track.Track) (bool, error) {
	var added bool
	var result <-chan error
	err := p.do(ctx, func() error {
		if err := p.admit(ctx, t); err != nil {
			return err
		}
		wasEmpty := p.queue.Len() == 0
		added = p.queue.Append(t)
		result = p.sync(wasEmpty && added)
		p.publish()
		return nil
	})
	if err != nil {
		return false, err
	}
	return added, p.await(ctx, result)
}

// Remove deletes the track with the given ID. When it was current, the
// track taking its place is loaded and keeps playing only if playback was
// running.
func (p *Player) Remove(ctx context.Context, id string) error {
	var result <-chan error
	err := p.do(ctx, func() error {
		wasPlaying := p.transport.Playing()
		if !p.queue.Remove(id) {
			return errors.Wrapf(ErrNotQueued, "remove %s", id)
		}
		result = p.sync(wasPlaying)
		p.publish()
		return nil
	})
	if err != nil {
		return err
	}
	return p.await(ctx, result)
}

// Clear empties the queue and releases the transport.
func (p *Player) Clear(ctx context.Context) error {
	return p.do(ctx, func() error {
		p.queue.Clear()
		p.sync(false)
		p.publish()
		return nil
	})
}

// SelectAndPlay makes t current, appending it when it is not queued, and
// plays it.
func (p *Player) SelectAndPlay(ctx context.Context, t track.Track) error {
	var result <-chan error
	err := p.do(ctx, func() error {
		if !p.queue.Contains(t.ID) {
			if err := p.admit(ctx, t); err != nil {
				return err
			}
		}

		prev, hadPrev := p.queue.Current()
		wasPlaying := p.transport.Playing()
		p.queue.SelectAndPlay(t)
		if hadPrev && prev.ID != t.ID {
			p.skipped(prev, wasPlaying)
		}

		result = p.sync(true)
		p.publish()
		return nil
	})
	if err != nil {
		return err
	}
	return p.await(ctx, result)
}

// Next moves to the next track under the play mode and plays it.
func (p *Player) Next(ctx context.Context) error {
	return p.move(ctx, p.queue.Advance, ErrNoNext)
}

// Previous moves to the previous track under the play mode and plays it.
func (p *Player) Previous(ctx context.Context) error {
	return p.move(ctx, p.queue.Retreat, ErrNoPrevious)
}

// JumpTo selects the track at index and plays it.
func (p *Player) JumpTo(ctx context.Context, index int) error {
	return p.move(ctx, func() (int, bool) {
		if !p.queue.JumpTo(index) {
			return queue.NoIndex, false
		}
		return index, true
	}, ErrOutOfRange)
}

func (p *Player) move(ctx context.Context, step func() (int, bool), noTarget error) error {
	var result <-chan error
	err := p.do(ctx, func() error {
		prev, hadPrev := p.queue.Current()
		wasPlaying := p.transport.Playing()

		if _, ok := step(); !ok {
			return noTarget
		}
		if hadPrev {
			p.skipped(prev, wasPlaying)
		}

		// Always rebind: repeat-one and jumping to the current index restart.
		result = p.bind(true)
		p.publish()
		return nil
	})
	if err != nil {
		return err
	}
	return p.await(ctx, result)
}

// ToggleMode cycles the play mode and returns the new one.
func (p *Player) ToggleMode(ctx context.Context) (queue.PlayMode, error) {
	var mode queue.PlayMode
	err := p.do(ctx, func() error {
		mode = p.queue.ToggleMode()
		p.savePrefs()
		p.publish()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return mode, nil
}

// SetMode sets the play mode.
func (p *Player) SetMode(ctx context.Context, mode queue.PlayMode) error {
	return p.do(ctx, func() error {
		p.queue.SetMode(mode)
		p.savePrefs()
		p.publish()
		return nil
	})
}

// Play starts or resumes playback of the current track, reloading it when
// the transport has ended or failed.
func (p *Player) Play(ctx context.Context) error {
	var result <-chan error
	if err := p.do(ctx, func() error {
		result = p.playCurrent()
		return nil
	}); err != nil {
		return err
	}
	return p.await(ctx, result)
}

// Pause pauses playback.
func (p *Player) Pause(ctx context.Context) error {
	return p.do(ctx, func() error {
		p.transport.Pause()
		return nil
	})
}

// TogglePlay pauses when playing, otherwise plays.
func (p *Player) TogglePlay(ctx context.Context) error {
	var result <-chan error
	if err := p.do(ctx, func() error {
		if p.transport.Playing() {
			p.transport.Pause()
			result = resolved(nil)
			return nil
		}
		result = p.playCurrent()
		return nil
	}); err != nil {
		return err
	}
	return p.await(ctx, result)
}

// Seek moves the playback position.
func (p *Player) Seek(ctx context.Context, position time.Duration) error {
	return p.do(ctx, func() error {
		if p.loadedID == "" {
			return ErrNoCurrent
		}
		p.transport.Seek(position)
		return nil
	})
}

// SetVolume sets the volume, clamped to [0, 1], and persists it.
func (p *Player) SetVolume(ctx context.Context, volume float64) error {
	return p.do(ctx, func() error {
		p.transport.SetVolume(volume)
		p.savePrefs()
		return nil
	})
}

// Like reports a like for the current track.
func (p *Player) Like(ctx context.Context) error {
	return p.do(ctx, func() error {
		cur, ok := p.queue.Current()
		if !ok {
			return ErrNoCurrent
		}
		p.reporter.Report(cur, interaction.TypeLike)
		return nil
	})
}

// Status returns a snapshot of the player state.
func (p *Player) Status(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := p.do(ctx, func() error {
		snap = p.snapshot()
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// admit runs the filter chain for a single addition.
func (p *Player) admit(ctx context.Context, t track.Track) error {
	result := p.filters.Execute(ctx, t, filter.OriginUser)
	if !result.Accepted {
		zlog.Info().Msgf("track rejected by filter: id=%s code=%s", t.ID, result.Code)
		return &RejectedError{TrackID: t.ID, Code: result.Code}
	}
	return nil
}

// sync rebinds the transport only when the current track differs from the
// loaded one. For an unchanged track autoplay resumes it.
func (p *Player) sync(autoplay bool) <-chan error {
	cur, ok := p.queue.Current()
	if ok && cur.ID == p.loadedID {
		if autoplay {
			return p.playCurrent()
		}
		return resolved(nil)
	}
	if !ok && p.loadedID == "" {
		return resolved(nil)
	}
	return p.bind(autoplay)
}

// bind loads the current track into the transport, or releases the
// transport when nothing is current.
func (p *Player) bind(autoplay bool) <-chan error {
	cur, ok := p.queue.Current()
	if !ok {
		p.transport.Cleanup()
		p.loadedID = ""
		return resolved(nil)
	}

	p.loadedID = cur.ID
	if err := p.transport.LoadTrack(cur.MediaURL, transport.Hint{Duration: cur.Duration}); err != nil {
		return resolved(err)
	}
	zlog.Info().Msgf("track loaded: index=%d id=%s name=%s", p.queue.CurrentIndex(), cur.ID, cur.DisplayName())

	if !autoplay {
		return resolved(nil)
	}
	return p.transport.Play()
}

func (p *Player) playCurrent() <-chan error {
	if p.loadedID != "" && p.transport.State().Loaded() {
		return p.transport.Play()
	}
	if _, ok := p.queue.Current(); !ok {
		return resolved(ErrEmptyQueue)
	}
	return p.bind(true)
}

func (p *Player) skipped(prev track.Track, wasPlaying bool) {
	if wasPlaying {
		p.reporter.Report(prev, interaction.TypeSkip)
	}
}

func (p *Player) onEnded() {
	if cur, ok := p.queue.Current(); ok {
		p.reporter.Report(cur, interaction.TypePlay)
	}

	if _, ok := p.queue.Advance(); !ok {
		zlog.Info().Msg("reached end of queue")
		p.publish()
		return
	}
	p.bind(true)
	p.publish()
}

func (p *Player) onError(err error) {
	zlog.Warn().Msgf("playback error: track=%s err=%v", p.loadedID, err)
	p.notifier.Broadcast(notification.New(notification.KindError, ErrorPayload{
		TrackID:  p.loadedID,
		Message:  err.Error(),
		Rejected: errors.Is(err, transport.ErrPlaybackRejected),
	}))
}

func (p *Player) onChange(transport.Status) {
	p.publish()
}

func (p *Player) onTimeUpdate(status transport.Status) {
	if !p.ticks.Allow() {
		return
	}
	p.notifier.Broadcast(notification.New(notification.KindTimeUpdate, status))
}

func (p *Player) publish() {
	p.notifier.Broadcast(notification.New(notification.KindStatus, p.snapshot()))
}

func (p *Player) snapshot() Snapshot {
	snap := Snapshot{
		Transport:     p.transport.Status(),
		Queue:         p.queue.Tracks(),
		CurrentIndex:  p.queue.CurrentIndex(),
		Mode:          p.queue.Mode(),
		QueueDuration: p.queue.TotalDuration(),
	}
	if cur, ok := p.queue.Current(); ok {
		snap.Current = &cur
		snap.Upcoming = p.queue.Upcoming()
	}
	return snap
}

func (p *Player) savePrefs() {
	err := p.prefs.Save(prefs.Prefs{
		PlayMode: p.queue.Mode().String(),
		Volume:   p.transport.Volume(),
	})
	if err != nil {
		zlog.Warn().Msgf("failed to save prefs: %v", err)
	}
}

// do runs fn on the event loop and returns its error.
func (p *Player) do(ctx context.Context, fn func() error) error {
	var err error
	if lerr := p.loop.Do(ctx, func() { err = fn() }); lerr != nil {
		if errors.Is(lerr, loop.ErrStopped) {
			return ErrClosed
		}
		return lerr
	}
	return err
}

func (p *Player) await(ctx context.Context, result <-chan error) error {
	if result == nil {
		return nil
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func resolved(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}

type nopReporter struct{}

func (nopReporter) Report(track.Track, interaction.Type) bool { return false }

type nopNotifier struct{}

func (nopNotifier) Broadcast(*notification.Notification) {}
