package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pabraksas/pay-connector/internal/domain/event"
	"github.com/redis/go-redis/v9"
)

// EventStream is the stream downstream consumers (the ledger among them)
// read payment events from.
const EventStream = "payment:events"

// publishTimeout bounds how long a synchronous emit may hold up its caller.
const publishTimeout = 2 * time.Second

// EventBus publishes payment events to a Redis stream.
type EventBus struct {
	client *redis.Client
}

func NewEventBus(client *redis.Client) *EventBus {
	return &EventBus{client: client}
}

// Publish delivers one event. Callers treat an error as "not heard", record
// it, and let the sweeper retry; duplicates on the stream are acceptable.
func (b *EventBus) Publish(ctx context.Context, e event.Event) error {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: EventStream,
		Values: map[string]any{
			"resource_type":        string(e.ResourceType),
			"resource_external_id": e.ResourceExternalID,
			"event_type":           e.EventType,
			"payload":              string(payload),
			"timestamp":            e.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish payment event: %w", err)
	}
	return nil
}
