package events

import (
	"context"
	"time"

	"github.com/pabraksas/pay-connector/internal/domain/charge"
	"github.com/pabraksas/pay-connector/internal/domain/event"
	"github.com/rs/zerolog"
)

// StateTransitionService converts committed charge transitions into domain
// events and hands them to the EventService. It implements
// service.StateTransitionOfferer.
type StateTransitionService struct {
	events *EventService
	logger zerolog.Logger
	// emitRetryDelay is how long the sweeper must wait before retrying a
	// failed delivery of an offered event.
	emitRetryDelay time.Duration
}

func NewStateTransitionService(events *EventService, emitRetryDelay time.Duration, logger zerolog.Logger) *StateTransitionService {
	return &StateTransitionService{events: events, emitRetryDelay: emitRetryDelay, logger: logger}
}

// Offer synthesizes the concrete event for a transition and attempts
// delivery. Errors are logged, never propagated: the transition is already
// committed and must not be disturbed.
func (s *StateTransitionService) Offer(ctx context.Context, st charge.StateTransition) {
	eventType := st.EventTypeOverride
	if eventType == "" {
		var ok bool
		eventType, ok = charge.EventForTransition(st.From, st.To)
		if !ok {
			// Transitions reach the outbox only after graph validation, so
			// a missing edge here is a programming error worth shouting
			// about, but still not worth failing anything over.
			s.logger.Error().
				Str("charge_external_id", st.ChargeExternalID).
				Str("from_status", string(st.From)).
				Str("to_status", string(st.To)).
				Msg("No event registered for accepted transition")
			return
		}
	}

	e := event.New(st.ChargeExternalID, eventType, st.EventDate, map[string]any{
		"from_status":     string(st.From),
		"to_status":       string(st.To),
		"status_event_id": st.StatusEventID,
	})

	deadline := time.Now().UTC().Add(s.emitRetryDelay)
	if err := s.events.EmitAndRecord(ctx, e, &deadline); err != nil {
		s.logger.Error().
			Err(err).
			Str("event_type", eventType).
			Str("charge_external_id", st.ChargeExternalID).
			Msg("Failed to record event emission")
	}
}
