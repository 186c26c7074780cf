// Package notification provides the notification manager for broadcasting
// player state changes.
package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// Kind identifies what a notification reports.
type Kind string

const (
	KindStatus     Kind = "status"      // Full player snapshot
	KindTimeUpdate Kind = "time_update" // Position moved during playback
	KindError      Kind = "error"       // Playback failed or was rejected
)

// Notification is a single message delivered to subscribers.
type Notification struct {
	SequenceNo uint64    `json:"sequence_no"`
	Kind       Kind      `json:"kind"`
	Time       time.Time `json:"time"`
	Payload    any       `json:"payload,omitempty"`
}

// New creates a notification stamped with the current time.
func New(kind Kind, payload any) *Notification {
	return &Notification{
		Kind:    kind,
		Time:    time.Now(),
		Payload: payload,
	}
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

const defaultBufferSize = 32

// subscription delivers queued notifications to one stream from its own
// goroutine.
type subscription struct {
	id     string
	stream Stream
	queue  chan *Notification
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// Manager manages notification subscriptions and broadcasting. Broadcast
// never blocks: a subscriber whose queue is full misses the notification.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	bufferSize    int
}

// Option configures a Manager.
type Option func(*Manager)

// WithBufferSize sets the per-subscriber queue length.
func WithBufferSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.bufferSize = n
		}
	}
}

// NewManager creates a new notification manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		subscriptions: make(map[string]*subscription),
		bufferSize:    defaultBufferSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe adds a new subscription and returns the subscription ID. The
// initial notifications are delivered before any broadcast.
func (m *Manager) Subscribe(stream Stream, initial ...*Notification) string {
	sub := &subscription{
		id:     uuid.New().String(),
		stream: stream,
		queue:  make(chan *Notification, m.bufferSize+len(initial)),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	for _, n := range initial {
		n.SequenceNo = m.sequenceNo
		sub.queue <- n
	}
	m.subscriptions[sub.id] = sub
	m.mu.Unlock()

	go m.deliver(sub)
	zlog.Debug().Msgf("notification subscribed: id=%s", sub.id)
	return sub.id
}

func (m *Manager) deliver(sub *subscription) {
	for {
		select {
		case <-sub.done:
			return
		case n := <-sub.queue:
			if err := sub.stream.Send(n); err != nil {
				zlog.Debug().Msgf("notification send failed, unsubscribing: id=%s err=%v", sub.id, err)
				m.Unsubscribe(sub.id)
				return
			}
		}
	}
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	sub, ok := m.subscriptions[subscriptionID]
	delete(m.subscriptions, subscriptionID)
	m.mu.Unlock()

	if ok {
		sub.close()
		zlog.Debug().Msgf("notification unsubscribed: id=%s", subscriptionID)
	}
}

// Done returns a channel closed when the subscription ends, either through
// Unsubscribe or a failed send. Unknown IDs yield a closed channel.
func (m *Manager) Done(subscriptionID string) <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if sub, ok := m.subscriptions[subscriptionID]; ok {
		return sub.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Broadcast stamps the next sequence number and enqueues the notification
// for every subscriber.
func (m *Manager) Broadcast(notification *Notification) {
	m.mu.Lock()
	m.sequenceNo++
	notification.SequenceNo = m.sequenceNo
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.queue <- notification:
		default:
			zlog.Debug().Msgf("notification dropped: id=%s seq=%d kind=%s", sub.id, notification.SequenceNo, notification.Kind)
		}
	}
}

// SequenceNo returns the last sequence number broadcast.
func (m *Manager) SequenceNo() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sequenceNo
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := m.subscriptions
	m.subscriptions = make(map[string]*subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
