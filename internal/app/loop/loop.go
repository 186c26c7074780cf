// Package loop provides the single-threaded event loop the player runs on.
//
// Every mutation of player state happens inside a closure executed by Run,
// one at a time, so the queue and the transport need no locking.
package loop

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrStopped is returned by Do once the loop has stopped.
var ErrStopped = errors.New("event loop stopped")

// Loop executes posted closures sequentially on one goroutine.
type Loop struct {
	inbox    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a loop with an inbox of the given capacity.
func New(capacity int) *Loop {
	if capacity <= 0 {
		capacity = 64
	}
	return &Loop{
		inbox: make(chan func(), capacity),
		done:  make(chan struct{}),
	}
}

// Run executes posted closures until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer l.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case fn := <-l.inbox:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("event loop: handler panicked: %v", r)
		}
	}()
	fn()
}

// Post enqueues fn. It blocks while the inbox is full and returns false
// once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.inbox <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do posts fn and waits for it to finish. It must not be called from inside
// the loop.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// fn may still have run just before stop.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Stop stops the loop. Pending closures are discarded.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}

// Done returns a channel that is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
