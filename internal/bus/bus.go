// Package bus provides an in-process publish/subscribe event bus.
//
// The bus delivers events to live subscribers only: there is no history
// and no replay. Publishing never blocks on a slow consumer; when a
// subscriber's buffer is full, the event is dropped for that subscriber
// alone and logged.
package bus

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by Subscribe after the bus has been closed.
var ErrClosed = errors.New("bus: closed")

// defaultBufferSize is the per-subscriber channel buffer.
const defaultBufferSize = 100

// Event is a single published occurrence on a topic.
type Event struct {
	PublishedAt time.Time
	Payload     any
	Topic       string
}

// Subscriber is a live attachment to one topic.
type Subscriber struct {
	ConnectedAt time.Time
	C           chan Event
	Done        chan struct{}
	ID          string
	Topic       string
}

// Bus fans events out to per-topic subscribers.
type Bus struct {
	logger     *slog.Logger
	topics     map[string]map[string]*Subscriber
	bufferSize int

	mu     sync.RWMutex
	closed bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithBufferSize overrides the per-subscriber channel buffer.
func WithBufferSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// New creates an event bus.
func New(logger *slog.Logger, opts ...Option) *Bus {
	b := &Bus{
		logger:     logger,
		topics:     make(map[string]map[string]*Subscriber),
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe attaches a new subscriber to a topic. The returned
// subscriber's channel receives every event published to the topic from
// this moment on, in publish order. Returns ErrClosed after Close.
func (b *Bus) Subscribe(topic string) (*Subscriber, error) {
	sub := &Subscriber{
		ID:          uuid.NewString(),
		Topic:       topic,
		C:           make(chan Event, b.bufferSize),
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[string]*Subscriber)
		b.topics[topic] = subs
	}
	subs[sub.ID] = sub
	total := len(subs)
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Debug("bus subscriber attached",
			slog.String("subscriber_id", sub.ID),
			slog.String("topic", topic),
			slog.Int("topic_subscribers", total))
	}
	return sub, nil
}

// Unsubscribe detaches a subscriber and closes its channels. It is
// idempotent: detaching an unknown or already-detached subscriber is a
// no-op.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	subs, ok := b.topics[sub.Topic]
	if !ok {
		b.mu.Unlock()
		return
	}
	if _, ok := subs[sub.ID]; !ok {
		b.mu.Unlock()
		return
	}
	delete(subs, sub.ID)
	if len(subs) == 0 {
		delete(b.topics, sub.Topic)
	}
	b.mu.Unlock()

	// No publisher can still hold a reference: sends happen under the
	// read lock against the map, and the entry is gone.
	close(sub.Done)
	close(sub.C)

	if b.logger != nil {
		b.logger.Debug("bus subscriber detached",
			slog.String("subscriber_id", sub.ID),
			slog.String("topic", sub.Topic),
			slog.Duration("duration", time.Since(sub.ConnectedAt)))
	}
}

// Publish fans an event out to every subscriber of the topic. Delivery
// is a non-blocking send per subscriber: a full buffer drops the event
// for that subscriber only. Publish returns once fan-out is complete and
// never waits on a consumer.
func (b *Bus) Publish(topic string, payload any) {
	event := Event{
		Topic:       topic,
		Payload:     payload,
		PublishedAt: time.Now(),
	}

	var delivered, dropped int

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.topics[topic] {
		select {
		case sub.C <- event:
			delivered++
		default:
			dropped++
			if b.logger != nil {
				b.logger.Warn("dropped event for slow subscriber",
					slog.String("subscriber_id", sub.ID),
					slog.String("topic", topic))
			}
		}
	}

	if b.logger != nil {
		b.logger.Debug("event published",
			slog.String("topic", topic),
			slog.Group("stats",
				slog.Int("delivered", delivered),
				slog.Int("dropped", dropped)))
	}
}

// SubscriberCount returns the number of live subscribers on a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close detaches every subscriber and rejects further subscriptions.
// Publishing to a closed bus is a silent no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	all := b.topics
	b.topics = make(map[string]map[string]*Subscriber)
	b.mu.Unlock()

	for _, subs := range all {
		for _, sub := range subs {
			close(sub.Done)
			close(sub.C)
		}
	}

	if b.logger != nil {
		b.logger.Info("event bus closed")
	}
}
