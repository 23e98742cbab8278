package capture

import (
	"context"
	"testing"

	"github.com/pabraksas/pay-connector/internal/domain/charge"
	domainErrors "github.com/pabraksas/pay-connector/internal/domain/errors"
	"github.com/pabraksas/pay-connector/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (q *memQueue) AddChargeToQueue(ctx context.Context, chargeExternalID string) error {
	q.Enqueue(Message{ID: "mem-0", ChargeExternalID: chargeExternalID})
	return nil
}

func newEnqueuerFixture(t *testing.T) (*Enqueuer, *processorFixture) {
	t.Helper()
	f := newProcessorFixture(t, 3)
	return NewEnqueuer(f.processor.charges, f.queue, zerolog.Nop()), f
}

func TestMarkChargeEligibleForCapture_ImmediateCapture(t *testing.T) {
	enqueuer, f := newEnqueuerFixture(t)

	c := testutil.NewTestCharge(charge.StatusAuthorisationSuccess)
	f.repo.AddCharge(c)

	updated, err := enqueuer.MarkChargeEligibleForCapture(context.Background(), c.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, charge.StatusCaptureApproved, updated.Status)

	pending, err := f.queue.Receive(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, c.ExternalID, pending[0].ChargeExternalID)
}

func TestMarkChargeEligibleForCapture_DelayedCaptureParks(t *testing.T) {
	enqueuer, f := newEnqueuerFixture(t)

	c := testutil.NewTestCharge(charge.StatusAuthorisationSuccess)
	c.DelayedCapture = true
	f.repo.AddCharge(c)

	updated, err := enqueuer.MarkChargeEligibleForCapture(context.Background(), c.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, charge.StatusAwaitingCaptureRequest, updated.Status)

	pending, err := f.queue.Receive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMarkDelayedChargeReady(t *testing.T) {
	enqueuer, f := newEnqueuerFixture(t)

	c := testutil.NewTestCharge(charge.StatusAwaitingCaptureRequest)
	f.repo.AddCharge(c)

	updated, err := enqueuer.MarkDelayedChargeReady(context.Background(), c.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, charge.StatusCaptureApproved, updated.Status)

	pending, err := f.queue.Receive(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, c.ExternalID, pending[0].ChargeExternalID)
}

func TestMarkChargeEligibleForCapture_WrongState(t *testing.T) {
	enqueuer, f := newEnqueuerFixture(t)

	c := testutil.NewTestCharge(charge.StatusCreated)
	f.repo.AddCharge(c)

	_, err := enqueuer.MarkChargeEligibleForCapture(context.Background(), c.ExternalID)

	var invalid *domainErrors.InvalidStateTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, charge.StatusCreated, f.repo.StoredStatus(c.ExternalID))
}
