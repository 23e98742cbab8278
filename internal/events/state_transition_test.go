package events

import (
	"context"
	"testing"
	"time"

	"github.com/pabraksas/pay-connector/internal/domain/charge"
	domainErrors "github.com/pabraksas/pay-connector/internal/domain/errors"
	"github.com/pabraksas/pay-connector/internal/domain/event"
	"github.com/pabraksas/pay-connector/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOffererUnderTest(bus *testutil.MockEventBus, repo *testutil.MockEventRepository) *StateTransitionService {
	svc := NewEventService(bus, repo, zerolog.Nop(), newTestMetrics())
	return NewStateTransitionService(svc, time.Minute, zerolog.Nop())
}

func TestOffer_SynthesizesEdgeEvent(t *testing.T) {
	bus := testutil.NewMockEventBus()
	repo := testutil.NewMockEventRepository()
	offerer := newOffererUnderTest(bus, repo)

	eventDate := time.Now().UTC()
	offerer.Offer(context.Background(), charge.StateTransition{
		ChargeExternalID: "ch123",
		From:             charge.StatusCaptureSubmitted,
		To:               charge.StatusCaptured,
		StatusEventID:    7,
		EventDate:        eventDate,
	})

	published := bus.Published()
	require.Len(t, published, 1)
	assert.Equal(t, charge.EventCaptureConfirmed, published[0].EventType)
	assert.Equal(t, "ch123", published[0].ResourceExternalID)
	assert.Equal(t, event.ResourcePayment, published[0].ResourceType)
	assert.Equal(t, eventDate, published[0].Timestamp)
	assert.Equal(t, string(charge.StatusCaptureSubmitted), published[0].Data["from_status"])
	assert.Equal(t, string(charge.StatusCaptured), published[0].Data["to_status"])
	assert.Equal(t, int64(7), published[0].Data["status_event_id"])

	rec := repo.Record(event.ResourcePayment, "ch123", charge.EventCaptureConfirmed)
	require.NotNil(t, rec)
	assert.True(t, rec.Emitted)
}

func TestOffer_OverrideWinsOverEdgeEvent(t *testing.T) {
	bus := testutil.NewMockEventBus()
	repo := testutil.NewMockEventRepository()
	offerer := newOffererUnderTest(bus, repo)

	offerer.Offer(context.Background(), charge.StateTransition{
		ChargeExternalID:  "ch123",
		From:              charge.StatusCaptureReady,
		To:                charge.StatusCaptured,
		EventDate:         time.Now().UTC(),
		EventTypeOverride: charge.EventCorrectedToCaptured,
	})

	published := bus.Published()
	require.Len(t, published, 1)
	assert.Equal(t, charge.EventCorrectedToCaptured, published[0].EventType)
}

func TestOffer_UnknownEdgeWithoutOverrideIsDropped(t *testing.T) {
	bus := testutil.NewMockEventBus()
	repo := testutil.NewMockEventRepository()
	offerer := newOffererUnderTest(bus, repo)

	offerer.Offer(context.Background(), charge.StateTransition{
		ChargeExternalID: "ch123",
		From:             charge.StatusCreated,
		To:               charge.StatusCaptured,
		EventDate:        time.Now().UTC(),
	})

	assert.Empty(t, bus.Published())
}

func TestOffer_BusFailureDoesNotPanicOrPropagate(t *testing.T) {
	bus := testutil.NewMockEventBus()
	bus.PublishFunc = func(ctx context.Context, e event.Event) error {
		return domainErrors.ErrEventBusUnavailable
	}
	repo := testutil.NewMockEventRepository()
	offerer := newOffererUnderTest(bus, repo)

	offerer.Offer(context.Background(), charge.StateTransition{
		ChargeExternalID: "ch123",
		From:             charge.StatusCaptureSubmitted,
		To:               charge.StatusCaptured,
		EventDate:        time.Now().UTC(),
	})

	rec := repo.Record(event.ResourcePayment, "ch123", charge.EventCaptureConfirmed)
	require.NotNil(t, rec)
	assert.False(t, rec.Emitted)
	require.NotNil(t, rec.DoNotRetryEmitUntil)
	assert.True(t, rec.DoNotRetryEmitUntil.After(time.Now().UTC()))
}
