// Package events provides a small in-process publish/subscribe bus. It keeps
// the sample store and the workflow engine decoupled: the store publishes a
// SampleCreated event instead of calling the engine directly.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types published on the bus.
const (
	SampleCreated   = "sample.created"
	SampleCompleted = "sample.completed"
	ResultProcessed = "result.processed"
)

// Event carries the type, the subject entity id and an optional payload.
type Event struct {
	ID        uuid.UUID
	Type      string
	SubjectID uuid.UUID
	Payload   any
	Timestamp time.Time
}

// Handler processes one event. Handlers are best-effort: a returned error is
// logged by the bus and never propagated to the publisher.
type Handler func(ctx context.Context, evt Event) error

// Bus is a synchronous in-process event bus. Publish invokes every handler
// subscribed to the event type, in subscription order, on the caller's
// goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for the given event type.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Publish delivers the event to all subscribed handlers. Handler errors are
// logged and swallowed so a failing subscriber cannot fail the publisher.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := b.handlers[evt.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, evt); err != nil {
			b.logger.Error().
				Err(err).
				Str("event_type", evt.Type).
				Str("event_id", evt.ID.String()).
				Str("subject_id", evt.SubjectID.String()).
				Msg("event handler failed")
		}
	}
}
