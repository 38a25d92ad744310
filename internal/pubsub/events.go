// Package pubsub provides a generic publish/subscribe event system used to fan
// out log entries and per-file pipeline outcomes to listeners such as the
// watch command.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// CreatedEvent is used for append-only streams such as log entries.
	CreatedEvent EventType = "created"

	// File outcome events published by the pipeline.
	FileRewritten EventType = "file.rewritten"
	FileUnchanged EventType = "file.unchanged"
	FileSkipped   EventType = "file.skipped"
	FileFailed    EventType = "file.failed"

	// RunCompleted is published once per pipeline run.
	RunCompleted EventType = "run.completed"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
