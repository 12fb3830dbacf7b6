// Package events fans mutation events out to subscribers in-process.
package events

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Event names the kind of mutation.
type Event string

const (
	EventCreate Event = "create"
	EventUpdate Event = "update"
	EventDelete Event = "delete"
)

// Valid reports whether e is a known event, or empty (any event).
func (e Event) Valid() bool {
	switch e {
	case "", EventCreate, EventUpdate, EventDelete:
		return true
	default:
		return false
	}
}

// Message is one mutated record. ID is a ULID so messages sort by publish time.
type Message struct {
	ID         string
	Collection string
	Event      Event
	Key        interface{}
	At         time.Time
}

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

type subscriber struct {
	collection string
	event      Event
	ch         chan Message
}

// Bus is a non-blocking publish/subscribe hub keyed by collection. A subscriber
// that falls behind loses messages rather than stalling publishers.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uuid.UUID]*subscriber
	buffer  int
	logger  *slog.Logger
	entropy io.Reader
	now     func() time.Time
}

// Option configures a Bus.
type Option func(*Bus)

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(size int) Option {
	return func(b *Bus) {
		if size > 0 {
			b.buffer = size
		}
	}
}

// WithLogger sets the logger used to report dropped messages.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs:    map[uuid.UUID]*subscriber{},
		buffer:  DefaultBuffer,
		logger:  slog.Default(),
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers interest in a collection, optionally narrowed to one
// event. The channel is closed by Unsubscribe.
func (b *Bus) Subscribe(collection string, event Event) (uuid.UUID, <-chan Message) {
	id := uuid.New()
	sub := &subscriber{collection: collection, event: event, ch: make(chan Message, b.buffer)}
	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()
	b.logger.Debug("subscription added",
		slog.String("subscription_id", id.String()),
		slog.String("collection", collection),
		slog.String("event", string(event)),
	)
	return id, sub.ch
}

// Unsubscribe removes a subscription and closes its channel. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Publish delivers a message for every key to matching subscribers and returns
// the messages that were sent.
func (b *Bus) Publish(ctx context.Context, collection string, event Event, keys ...interface{}) []Message {
	messages := make([]Message, 0, len(keys))
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		now := b.now()
		msg := Message{
			ID:         ulid.MustNew(ulid.Timestamp(now), b.entropy).String(),
			Collection: collection,
			Event:      event,
			Key:        key,
			At:         now,
		}
		messages = append(messages, msg)
		for id, sub := range b.subs {
			if sub.collection != collection || (sub.event != "" && sub.event != event) {
				continue
			}
			select {
			case sub.ch <- msg:
			case <-ctx.Done():
				return messages
			default:
				b.logger.Warn("subscriber is not keeping up, dropping event",
					slog.String("subscription_id", id.String()),
					slog.String("collection", collection),
				)
			}
		}
	}
	return messages
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
