package core

import (
	"context"
	"time"
)

// Event is a domain event emitted after a state change has been committed.
type Event struct {
	Name       string      `json:"name"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// EventPublisher is any service that can broadcast domain events.
// Publishing is best effort: a failure must never roll back the change it describes.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event) error
}

func NewEvent(name string, payload interface{}) Event {
	return Event{Name: name, OccurredAt: NowFunc(), Payload: payload}
}
