// Package bus provides the in-process event bus every pipeline component
// publishes through. Delivery is synchronous, in registration order, within
// the caller's goroutine; a panicking subscriber is isolated and logged so
// it cannot prevent delivery to the subscribers registered after it.
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is one typed notification relayed by the bus
type Event struct {
	ID        string
	Source    string
	Type      string
	Payload   any
	Timestamp time.Time
}

// Handler receives events for a subscription
type Handler func(Event)

// Wildcard subscribes a handler to every event type
const Wildcard = "*"

// Bus is an in-process publish/subscribe relay. It owns no state beyond its
// subscriber lists.
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]Handler
	logger *zap.Logger
}

// New creates a new event bus
func New(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[string][]Handler),
		logger: logger,
	}
}

// Subscribe registers a handler for an event type. Handlers for the same
// type are invoked in registration order.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventType] = append(b.subs[eventType], h)
}

// Publish delivers an event to all handlers subscribed to its type and to
// the wildcard, synchronously.
func (b *Bus) Publish(source, eventType string, payload any) Event {
	evt := Event{
		ID:        uuid.NewString(),
		Source:    source,
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs[eventType])+len(b.subs[Wildcard]))
	handlers = append(handlers, b.subs[eventType]...)
	handlers = append(handlers, b.subs[Wildcard]...)
	b.mu.Unlock()

	for _, h := range handlers {
		b.deliver(h, evt)
	}
	return evt
}

// deliver invokes one handler, recovering from panics so a broken subscriber
// does not take the rest of the tick down with it.
func (b *Bus) deliver(h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event subscriber panicked",
				zap.String("event_type", evt.Type),
				zap.String("source", evt.Source),
				zap.Any("panic", r))
		}
	}()
	h(evt)
}
