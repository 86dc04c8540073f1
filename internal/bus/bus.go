// Package bus provides the in-process event bus that fans committed events
// out to projectors.
//
// Delivery is synchronous and in registration order. The first subscriber
// error stops delivery and is returned to the publisher; panics are not
// recovered.
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/projectlog/internal/event"
	"github.com/p-blackswan/projectlog/internal/metrics"
)

// Wildcard subscribes a handler to every event type.
const Wildcard event.Type = "*"

// Handler consumes one published event.
type Handler func(ctx context.Context, evt event.Event) error

// SubscriberError wraps the error of the subscriber that stopped a publish.
type SubscriberError struct {
	Subscriber string
	Type       event.Type
	Err        error
}

func (e *SubscriberError) Error() string {
	return fmt.Sprintf("subscriber %s failed on %s: %v", e.Subscriber, e.Type, e.Err)
}

func (e *SubscriberError) Unwrap() error { return e.Err }

type subscription struct {
	name    string
	typ     event.Type
	handler Handler
}

// Bus is a synchronous publish/subscribe dispatcher.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscription
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// New creates an empty bus. m may be nil.
func New(logger zerolog.Logger, m *metrics.Metrics) *Bus {
	return &Bus{
		logger:  logger.With().Str("component", "bus").Logger(),
		metrics: m,
	}
}

// Subscribe registers handler for events of type typ (or Wildcard) for the
// lifetime of the process.
func (b *Bus) Subscribe(typ event.Type, name string, handler Handler) {
	if handler == nil {
		panic("bus: nil handler for " + name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, typ: typ, handler: handler})
	b.logger.Debug().Str("subscriber", name).Str("type", string(typ)).Msg("subscribed")
}

// Publish delivers evt to every matching subscriber in registration order.
func (b *Bus) Publish(ctx context.Context, evt event.Event) error {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.typ == evt.Type || s.typ == Wildcard {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler(ctx, evt); err != nil {
			if b.metrics != nil {
				b.metrics.RecordSubscriberError(string(evt.Type))
			}
			b.logger.Error().Err(err).
				Str("subscriber", s.name).
				Str("stream_id", evt.StreamID).
				Int64("version", evt.Version).
				Msg("subscriber failed")
			return &SubscriberError{Subscriber: s.name, Type: evt.Type, Err: err}
		}
	}

	if b.metrics != nil {
		b.metrics.RecordPublished(string(evt.Type))
	}
	b.logger.Debug().
		Str("stream_id", evt.StreamID).
		Int64("version", evt.Version).
		Int("subscribers", len(subs)).
		Msg("event published")
	return nil
}

// Subscribers returns the number of registered subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
