package event

import (
	"context"
	"time"
)

// ResourceType identifies the kind of resource an event describes.
type ResourceType string

const ResourcePayment ResourceType = "payment"

// Event is a domain event offered to the downstream bus. The triple
// (ResourceType, ResourceExternalID, EventType) is the idempotency key used
// by the emitted-event record.
type Event struct {
	ResourceType       ResourceType
	ResourceExternalID string
	EventType          string
	Timestamp          time.Time
	Data               map[string]any
}

// New builds a payment event with the given type and timestamp.
func New(resourceExternalID, eventType string, timestamp time.Time, data map[string]any) Event {
	return Event{
		ResourceType:       ResourcePayment,
		ResourceExternalID: resourceExternalID,
		EventType:          eventType,
		Timestamp:          timestamp,
		Data:               data,
	}
}

// EmittedEvent is the durable record of a delivery attempt. Emitted is true
// only after the bus accepted the event; unemitted records carry the
// deadline before which the sweeper must not retry them.
type EmittedEvent struct {
	ID                  int64
	ResourceType        ResourceType
	ResourceExternalID  string
	EventType           string
	EventDate           time.Time
	Emitted             bool
	DoNotRetryEmitUntil *time.Time
}

// Repository persists emitted-event records. RecordEmission upserts on the
// idempotency triple and must never flip an emitted record back to
// unemitted.
type Repository interface {
	RecordEmission(ctx context.Context, e Event, emitted bool, doNotRetryEmitUntil *time.Time) error
	MarkEmitted(ctx context.Context, resourceType ResourceType, resourceExternalID, eventType string) error
	FindUnemitted(ctx context.Context, retryableAt time.Time, limit int) ([]*EmittedEvent, error)
}
