package events

import (
	"context"
	"testing"
	"time"

	domainErrors "github.com/pabraksas/pay-connector/internal/domain/errors"
	"github.com/pabraksas/pay-connector/internal/domain/event"
	"github.com/pabraksas/pay-connector/internal/infrastructure/observability"
	"github.com/pabraksas/pay-connector/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *observability.Metrics {
	return observability.NewMetrics("test", prometheus.NewRegistry())
}

func TestEmitAndRecord_Success(t *testing.T) {
	bus := testutil.NewMockEventBus()
	repo := testutil.NewMockEventRepository()
	svc := NewEventService(bus, repo, zerolog.Nop(), newTestMetrics())

	e := event.New("ch123", "payment.capture_confirmed", time.Now().UTC(), nil)
	deadline := time.Now().UTC().Add(time.Minute)

	require.NoError(t, svc.EmitAndRecord(context.Background(), e, &deadline))

	assert.Len(t, bus.Published(), 1)

	rec := repo.Record(event.ResourcePayment, "ch123", "payment.capture_confirmed")
	require.NotNil(t, rec)
	assert.True(t, rec.Emitted)
	assert.Nil(t, rec.DoNotRetryEmitUntil)
}

func TestEmitAndRecord_BusUnreachable(t *testing.T) {
	bus := testutil.NewMockEventBus()
	bus.PublishFunc = func(ctx context.Context, e event.Event) error {
		return domainErrors.ErrEventBusUnavailable
	}
	repo := testutil.NewMockEventRepository()
	svc := NewEventService(bus, repo, zerolog.Nop(), newTestMetrics())

	e := event.New("ch123", "payment.created", time.Now().UTC(), nil)
	deadline := time.Now().UTC().Add(time.Minute)

	// A delivery failure must not surface: the transition that produced the
	// event is already committed.
	require.NoError(t, svc.EmitAndRecord(context.Background(), e, &deadline))

	rec := repo.Record(event.ResourcePayment, "ch123", "payment.created")
	require.NotNil(t, rec)
	assert.False(t, rec.Emitted)
	require.NotNil(t, rec.DoNotRetryEmitUntil)
	assert.Equal(t, deadline, *rec.DoNotRetryEmitUntil)
}

func TestEmitAndRecord_RecordFailureSurfaces(t *testing.T) {
	bus := testutil.NewMockEventBus()
	repo := testutil.NewMockEventRepository()
	recordErr := assert.AnError
	repo.RecordEmissionFunc = func(ctx context.Context, e event.Event, emitted bool, doNotRetryEmitUntil *time.Time) error {
		return recordErr
	}
	svc := NewEventService(bus, repo, zerolog.Nop(), newTestMetrics())

	e := event.New("ch123", "payment.created", time.Now().UTC(), nil)
	err := svc.EmitAndRecord(context.Background(), e, nil)
	assert.ErrorIs(t, err, recordErr)
}

func TestEmitAndRecord_DuplicateDeliveryKeepsEmitted(t *testing.T) {
	bus := testutil.NewMockEventBus()
	repo := testutil.NewMockEventRepository()
	svc := NewEventService(bus, repo, zerolog.Nop(), newTestMetrics())
	ctx := context.Background()

	e := event.New("ch123", "payment.capture_confirmed", time.Now().UTC(), nil)
	require.NoError(t, svc.EmitAndRecord(ctx, e, nil))

	// A later failed attempt for the same triple must not flip the record
	// back to unemitted.
	bus.PublishFunc = func(ctx context.Context, e event.Event) error {
		return domainErrors.ErrEventBusUnavailable
	}
	deadline := time.Now().UTC().Add(time.Minute)
	require.NoError(t, svc.EmitAndRecord(ctx, e, &deadline))

	rec := repo.Record(event.ResourcePayment, "ch123", "payment.capture_confirmed")
	require.NotNil(t, rec)
	assert.True(t, rec.Emitted)
	assert.Nil(t, rec.DoNotRetryEmitUntil)
}
