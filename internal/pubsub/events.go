// Package pubsub provides a generic, channel-based publish/subscribe broker.
//
// It complements the synchronous events.Bus: subscribers receive copies of
// events on buffered channels and never block the publisher.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	RegisteredEvent   EventType = "registered"
	InstantiatedEvent EventType = "instantiated"
	LoadingEvent      EventType = "loading"
	LoadedEvent       EventType = "loaded"
	LoggedEvent       EventType = "logged"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events, optionally
// limited to some event types.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context, types ...EventType) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T) int
}
