package events

import (
	"context"
	"time"

	"github.com/pabraksas/pay-connector/internal/domain/event"
	"github.com/pabraksas/pay-connector/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// EventBus is the downstream bus contract. Publish is synchronous with a
// bounded timeout; consumers are assumed to tolerate duplicates.
type EventBus interface {
	Publish(ctx context.Context, e event.Event) error
}

// EventService implements the emit-then-record half of the outbox pattern:
// attempt synchronous delivery, then durably record the outcome keyed on
// (resource type, resource external id, event type) so the sweeper can retry
// failures without duplicating successes.
type EventService struct {
	bus     EventBus
	repo    event.Repository
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewEventService(bus EventBus, repo event.Repository, logger zerolog.Logger, metrics *observability.Metrics) *EventService {
	return &EventService{bus: bus, repo: repo, logger: logger, metrics: metrics}
}

// Emit delivers an event to the bus without recording it. Used where the
// caller owns its own bookkeeping.
func (s *EventService) Emit(ctx context.Context, e event.Event) error {
	return s.bus.Publish(ctx, e)
}

// EmitAndRecord attempts delivery and records the outcome. A delivery
// failure is recorded as an unemitted attempt with the given retry deadline
// and is NOT returned as an error: the outside world not having heard yet
// must never fail the state change that produced the event.
func (s *EventService) EmitAndRecord(ctx context.Context, e event.Event, doNotRetryEmitUntil *time.Time) error {
	if err := s.bus.Publish(ctx, e); err != nil {
		s.logger.Error().
			Err(err).
			Str("event_type", e.EventType).
			Str("resource_external_id", e.ResourceExternalID).
			Msg("Failed to emit event")
		s.metrics.EventsTotal.WithLabelValues(e.EventType, "failed").Inc()
		return s.repo.RecordEmission(ctx, e, false, doNotRetryEmitUntil)
	}

	s.metrics.EventsTotal.WithLabelValues(e.EventType, "emitted").Inc()
	return s.repo.RecordEmission(ctx, e, true, nil)
}
