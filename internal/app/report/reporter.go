// Package report sends listener interactions to the catalog API without
// blocking playback.
package report

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/flowbeat/internal/domain/interaction"
	"github.com/osa030/flowbeat/internal/domain/track"
)

// Recorder records one interaction with the catalog API.
type Recorder interface {
	RecordInteraction(ctx context.Context, trackID string, kind interaction.Type) error
}

// Config represents reporter configuration.
type Config struct {
	QueueSize int           // Pending reports kept before new ones are dropped
	Timeout   time.Duration // Per-report timeout
}

// Reporter delivers interactions from a single worker goroutine. Report
// never blocks; failures are logged and forgotten.
type Reporter struct {
	recorder Recorder
	timeout  time.Duration
	queue    chan interaction.Interaction
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a reporter and starts its worker.
func New(recorder Recorder, cfg Config) *Reporter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	r := &Reporter{
		recorder: recorder,
		timeout:  cfg.Timeout,
		queue:    make(chan interaction.Interaction, cfg.QueueSize),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

// Report queues an interaction for t. Only tracks from the FlowBeat catalog
// are reported. It returns false when the report was not queued.
func (r *Reporter) Report(t track.Track, kind interaction.Type) bool {
	if r == nil || r.recorder == nil || t.Source != track.SourceFlowBeat || !kind.Valid() {
		return false
	}

	select {
	case <-r.done:
		return false
	default:
	}

	select {
	case r.queue <- interaction.Interaction{TrackID: t.ID, Type: kind}:
		return true
	default:
		zlog.Warn().Msgf("report queue full, dropping interaction: track=%s type=%s", t.ID, kind)
		return false
	}
}

func (r *Reporter) run() {
	for {
		select {
		case <-r.done:
			return
		case in := <-r.queue:
			r.send(in)
		}
	}
}

func (r *Reporter) send(in interaction.Interaction) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.recorder.RecordInteraction(ctx, in.TrackID, in.Type); err != nil {
		zlog.Warn().Msgf("failed to report interaction: track=%s type=%s err=%v", in.TrackID, in.Type, err)
		return
	}
	zlog.Debug().Msgf("interaction reported: track=%s type=%s weight=%.1f", in.TrackID, in.Type, in.Type.Weight())
}

// Close stops the worker. Pending reports are discarded.
func (r *Reporter) Close() {
	if r == nil {
		return
	}
	r.stopOnce.Do(func() { close(r.done) })
}
