package interfaces

import "context"

// EventType represents the domain event families on the bus
type EventType string

const (
	EventResumeStatusChanged EventType = "resume.status.changed"
	EventJobStatusChanged    EventType = "job.status.changed"
	EventMatchStatusChanged  EventType = "match.status.changed"
)

// Event represents a domain event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the in-process pub/sub event bus. Events are not
// durable; a missed event is reconstructed by polling the authoritative row.
type EventService interface {
	// Subscribe registers a handler for an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeTagged registers a handler under a string tag; registering
	// the same tag twice is a no-op. Used by boot-time listeners so that
	// re-initialization never double-registers.
	SubscribeTagged(tag string, eventType EventType, handler EventHandler) error

	// Publish dispatches an event to all subscribers. A failing subscriber
	// never prevents the others from running.
	Publish(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
