// Package events provides the in-process event bus modules communicate
// over. Domain event definitions live with the domain in internal/events;
// this package carries only the infrastructure.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event.
type Event interface {
	// EventName returns the unique identifier of the event type.
	EventName() string
	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
}

// BaseEvent carries the fields shared by all events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a new event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler processes events of a specific type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes domain events to subscribed handlers.
type Bus interface {
	// Publish delivers the event to every handler registered for its name.
	// Delivery is asynchronous and detached from the caller's lifetime.
	Publish(ctx context.Context, event Event)

	// PublishSync delivers the event to handlers in subscription order and
	// returns the first handler error.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler for the given event name, as returned
	// by Event.EventName().
	Subscribe(eventName string, handler Handler)
}
