// Package pubsub fans typed events out to subscribers without blocking the publisher.
package pubsub

import (
	"context"
	"time"
)

// EventType classifies an event.
type EventType string

const (
	// UpdatedEvent carries a new observed state.
	UpdatedEvent EventType = "updated"
	// ErrorEvent carries a failure observed while producing events, e.g. an unreadable hosts file.
	ErrorEvent EventType = "error"
)

// Event is a published value with its type and publish time.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber is implemented by anything that hands out event channels.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}
