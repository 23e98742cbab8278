package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pabraksas/pay-connector/internal/domain/event"
)

// EmittedEventRepository implements event.Repository using PostgreSQL.
// One row per idempotency triple; re-recording a delivery attempt updates
// the existing row and never flips an emitted row back to unemitted.
type EmittedEventRepository struct {
	pool *pgxpool.Pool
}

// NewEmittedEventRepository creates a new EmittedEventRepository.
func NewEmittedEventRepository(pool *pgxpool.Pool) *EmittedEventRepository {
	return &EmittedEventRepository{pool: pool}
}

func (r *EmittedEventRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// RecordEmission upserts the delivery record for an event. The upsert keeps
// emitted sticky: once true it stays true even if a later attempt reports
// failure.
func (r *EmittedEventRepository) RecordEmission(ctx context.Context, e event.Event, emitted bool, doNotRetryEmitUntil *time.Time) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO emitted_events
		 (resource_type, resource_external_id, event_type, event_date, emitted, do_not_retry_emit_until)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (resource_type, resource_external_id, event_type) DO UPDATE SET
		   event_date = EXCLUDED.event_date,
		   emitted = emitted_events.emitted OR EXCLUDED.emitted,
		   do_not_retry_emit_until = CASE
		     WHEN emitted_events.emitted OR EXCLUDED.emitted THEN NULL
		     ELSE EXCLUDED.do_not_retry_emit_until
		   END`,
		string(e.ResourceType), e.ResourceExternalID, e.EventType, e.Timestamp, emitted, doNotRetryEmitUntil,
	)
	if err != nil {
		return fmt.Errorf("record event emission: %w", err)
	}
	return nil
}

// MarkEmitted flips a record to emitted after the sweeper delivered it.
func (r *EmittedEventRepository) MarkEmitted(ctx context.Context, resourceType event.ResourceType, resourceExternalID, eventType string) error {
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE emitted_events SET emitted = TRUE, do_not_retry_emit_until = NULL
		 WHERE resource_type = $1 AND resource_external_id = $2 AND event_type = $3`,
		string(resourceType), resourceExternalID, eventType,
	)
	if err != nil {
		return fmt.Errorf("mark event emitted: %w", err)
	}
	return nil
}

// FindUnemitted returns unemitted records whose retry deadline has passed,
// oldest first, capped at limit.
func (r *EmittedEventRepository) FindUnemitted(ctx context.Context, retryableAt time.Time, limit int) ([]*event.EmittedEvent, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, resource_type, resource_external_id, event_type, event_date, emitted, do_not_retry_emit_until
		 FROM emitted_events
		 WHERE emitted = FALSE
		   AND (do_not_retry_emit_until IS NULL OR do_not_retry_emit_until <= $1)
		 ORDER BY id ASC
		 LIMIT $2`,
		retryableAt, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list unemitted events: %w", err)
	}
	defer rows.Close()

	var events []*event.EmittedEvent
	for rows.Next() {
		e := &event.EmittedEvent{}
		var resourceType string
		if err := rows.Scan(&e.ID, &resourceType, &e.ResourceExternalID, &e.EventType, &e.EventDate, &e.Emitted, &e.DoNotRetryEmitUntil); err != nil {
			return nil, fmt.Errorf("scan emitted event: %w", err)
		}
		e.ResourceType = event.ResourceType(resourceType)
		events = append(events, e)
	}
	return events, rows.Err()
}
