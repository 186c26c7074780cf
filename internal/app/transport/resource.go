package transport

import (
	"context"
	"time"
)

// Resource is a platform handle that decodes and renders one media URL.
// It is owned exclusively by a Controller.
type Resource interface {
	// Play starts playback. It blocks until playback is running or the
	// start is rejected, and returns ctx.Err() when ctx ends first.
	Play(ctx context.Context) error
	Pause()
	Seek(pos time.Duration)
	SetVolume(v float64)
	Volume() float64
	Position() time.Duration
	// Duration returns 0 until the duration is known.
	Duration() time.Duration
	// Buffered returns the buffered time ranges.
	Buffered() []TimeRange
	// Events delivers lifecycle events. It is closed by Close.
	Events() <-chan Event
	// Close stops playback and releases the resource.
	Close() error
}

// Hint carries what the caller already knows about the media.
type Hint struct {
	Duration time.Duration
}

// Backend constructs resources.
type Backend interface {
	Open(url string, hint Hint) (Resource, error)
}

// TimeRange is a buffered span of media time.
type TimeRange struct {
	Start time.Duration
	End   time.Duration
}

// Scheduler runs functions on the thread that owns the Controller.
type Scheduler interface {
	Post(fn func()) bool
}
