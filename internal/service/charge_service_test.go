package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pabraksas/pay-connector/internal/domain/charge"
	domainErrors "github.com/pabraksas/pay-connector/internal/domain/errors"
	"github.com/pabraksas/pay-connector/internal/infrastructure/observability"
	"github.com/pabraksas/pay-connector/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(repo *testutil.MockChargeRepository, offerer *testutil.MockOfferer, cfg Config) *ChargeService {
	return NewChargeService(
		repo,
		testutil.NewMockTransactionManager(),
		offerer,
		cfg,
		zerolog.Nop(),
		observability.NewMetrics("test", prometheus.NewRegistry()),
	)
}

func defaultConfig() Config {
	return Config{EmitStateTransitionEvents: true, MaxCaptureRetries: 3}
}

func TestTransition_LegalEdge(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	offerer := testutil.NewMockOfferer()
	svc := newTestService(repo, offerer, defaultConfig())

	c := testutil.NewTestCharge(charge.StatusCreated)
	repo.AddCharge(c)

	updated, err := svc.Transition(context.Background(), c, charge.StatusEnteringCardDetails)
	require.NoError(t, err)

	assert.Equal(t, charge.StatusEnteringCardDetails, updated.Status)
	assert.Equal(t, charge.StatusEnteringCardDetails, repo.StoredStatus(c.ExternalID))

	events := repo.StatusEvents(c.ExternalID)
	require.Len(t, events, 1)
	assert.Equal(t, charge.StatusEnteringCardDetails, events[0].Status)

	offers := offerer.Offers()
	require.Len(t, offers, 1)
	assert.Equal(t, charge.StatusCreated, offers[0].From)
	assert.Equal(t, charge.StatusEnteringCardDetails, offers[0].To)
	assert.Equal(t, events[0].ID, offers[0].StatusEventID)
	assert.Empty(t, offers[0].EventTypeOverride)
}

func TestTransition_IllegalEdge(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	offerer := testutil.NewMockOfferer()
	svc := newTestService(repo, offerer, defaultConfig())

	c := testutil.NewTestCharge(charge.StatusCreated)
	repo.AddCharge(c)

	_, err := svc.Transition(context.Background(), c, charge.StatusCaptured)
	require.ErrorIs(t, err, domainErrors.ErrInvalidStateTransition)

	// Nothing persisted, nothing offered.
	assert.Equal(t, charge.StatusCreated, repo.StoredStatus(c.ExternalID))
	assert.Empty(t, repo.StatusEvents(c.ExternalID))
	assert.Empty(t, offerer.Offers())
}

func TestTransition_PersistenceFailureLeavesChargeUnchanged(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	svc := newTestService(repo, testutil.NewMockOfferer(), defaultConfig())

	c := testutil.NewTestCharge(charge.StatusCreated)
	repo.AddCharge(c)
	repo.UpdateStatusFunc = func(ctx context.Context, externalID string, expectedFrom, to charge.Status) error {
		return domainErrors.ErrOptimisticLockFailed
	}

	_, err := svc.Transition(context.Background(), c, charge.StatusEnteringCardDetails)
	require.ErrorIs(t, err, domainErrors.ErrOptimisticLockFailed)

	// The in-memory charge never gets ahead of the store.
	assert.Equal(t, charge.StatusCreated, c.Status)
}

func TestTransition_EmissionDisabled(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	offerer := testutil.NewMockOfferer()
	svc := newTestService(repo, offerer, Config{EmitStateTransitionEvents: false, MaxCaptureRetries: 3})

	c := testutil.NewTestCharge(charge.StatusCreated)
	repo.AddCharge(c)

	_, err := svc.Transition(context.Background(), c, charge.StatusEnteringCardDetails)
	require.NoError(t, err)

	// The ledger entry is still written; only the event offer is gated.
	assert.Len(t, repo.StatusEvents(c.ExternalID), 1)
	assert.Empty(t, offerer.Offers())
}

func TestTransitionAt_UsesSuppliedEventTime(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	offerer := testutil.NewMockOfferer()
	svc := newTestService(repo, offerer, defaultConfig())

	c := testutil.NewTestCharge(charge.StatusCaptureSubmitted)
	repo.AddCharge(c)

	gatewayTime := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	_, err := svc.TransitionAt(context.Background(), c, charge.StatusCaptured, &gatewayTime)
	require.NoError(t, err)

	events := repo.StatusEvents(c.ExternalID)
	require.Len(t, events, 1)
	assert.Equal(t, gatewayTime, events[0].EventDate)
}

func TestLockForProcessing_Success(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	offerer := testutil.NewMockOfferer()
	svc := newTestService(repo, offerer, defaultConfig())

	c := testutil.NewCapturableCharge()
	repo.AddCharge(c)

	locked, err := svc.LockForProcessing(context.Background(), c, charge.OperationCapture)
	require.NoError(t, err)
	assert.Equal(t, charge.StatusCaptureReady, locked.Status)
	assert.Equal(t, charge.StatusCaptureReady, repo.StoredStatus(c.ExternalID))
}

func TestLockForProcessing_AlreadyLocked(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	svc := newTestService(repo, testutil.NewMockOfferer(), defaultConfig())

	c := testutil.NewTestCharge(charge.StatusCaptureReady)
	repo.AddCharge(c)

	_, err := svc.LockForProcessing(context.Background(), c, charge.OperationCapture)
	require.ErrorIs(t, err, domainErrors.ErrOperationAlreadyInProgress)
}

func TestLockForProcessing_IllegalState(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	svc := newTestService(repo, testutil.NewMockOfferer(), defaultConfig())

	for _, status := range []charge.Status{charge.StatusCreated, charge.StatusCaptured, charge.StatusCaptureError} {
		c := testutil.NewTestCharge(status)
		repo.AddCharge(c)

		_, err := svc.LockForProcessing(context.Background(), c, charge.OperationCapture)
		assert.ErrorIs(t, err, domainErrors.ErrIllegalChargeState, "status %s", status)
	}
}

func TestLockForProcessing_ConcurrentCallersExactlyOneWins(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	svc := newTestService(repo, testutil.NewMockOfferer(), defaultConfig())

	stored := testutil.NewCapturableCharge()
	repo.AddCharge(stored)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Each caller works from its own snapshot, as separate worker
			// processes would.
			snapshot, err := svc.FindByExternalID(context.Background(), stored.ExternalID)
			if err != nil {
				results[i] = err
				return
			}
			_, results[i] = svc.LockForProcessing(context.Background(), snapshot, charge.OperationCapture)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, domainErrors.ErrOperationAlreadyInProgress)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, charge.StatusCaptureReady, repo.StoredStatus(stored.ExternalID))
	// Exactly one ledger entry despite the contention.
	assert.Len(t, repo.StatusEvents(stored.ExternalID), 1)
}

func TestLockForProcessing_RaceToTerminalState(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	svc := newTestService(repo, testutil.NewMockOfferer(), defaultConfig())

	stored := testutil.NewCapturableCharge()
	repo.AddCharge(stored)

	snapshot, err := svc.FindByExternalID(context.Background(), stored.ExternalID)
	require.NoError(t, err)

	// Another worker finishes the capture before our CAS lands.
	require.NoError(t, repo.SetStatus(context.Background(), stored.ExternalID, charge.StatusCaptured))

	_, err = svc.LockForProcessing(context.Background(), snapshot, charge.OperationCapture)
	assert.ErrorIs(t, err, domainErrors.ErrIllegalChargeState)
}

func TestForceTransition_WithCorrectionEvent(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	offerer := testutil.NewMockOfferer()
	svc := newTestService(repo, offerer, defaultConfig())

	// Stuck in the locking status after a worker died mid-capture.
	c := testutil.NewTestCharge(charge.StatusCaptureReady)
	repo.AddCharge(c)

	updated, err := svc.ForceTransition(context.Background(), c, charge.StatusCaptured)
	require.NoError(t, err)
	assert.Equal(t, charge.StatusCaptured, updated.Status)
	assert.Equal(t, charge.StatusCaptured, repo.StoredStatus(c.ExternalID))

	events := repo.StatusEvents(c.ExternalID)
	require.Len(t, events, 1)
	assert.Equal(t, charge.StatusCaptured, events[0].Status)

	offers := offerer.Offers()
	require.Len(t, offers, 1)
	assert.Equal(t, charge.EventCorrectedToCaptured, offers[0].EventTypeOverride)
}

func TestForceTransition_WithoutCorrectionEvent(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	offerer := testutil.NewMockOfferer()
	svc := newTestService(repo, offerer, defaultConfig())

	c := testutil.NewTestCharge(charge.StatusCaptureReady)
	repo.AddCharge(c)

	_, err := svc.ForceTransition(context.Background(), c, charge.StatusExpired)
	require.ErrorIs(t, err, domainErrors.ErrInvalidForceStateTransition)

	assert.Equal(t, charge.StatusCaptureReady, repo.StoredStatus(c.ExternalID))
	assert.Empty(t, repo.StatusEvents(c.ExternalID))
	assert.Empty(t, offerer.Offers())
}

func TestCountCaptureRetries(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	svc := newTestService(repo, testutil.NewMockOfferer(), defaultConfig())

	c := testutil.NewCapturableCharge()
	repo.AddCharge(c)
	ctx := context.Background()

	count, err := svc.CountCaptureRetries(ctx, c.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for i := 0; i < 2; i++ {
		_, err := repo.InsertStatusEvent(ctx, &charge.StatusEvent{
			ChargeExternalID: c.ExternalID,
			Status:           charge.StatusCaptureApprovedRetry,
			EventDate:        time.Now().UTC(),
		})
		require.NoError(t, err)
	}
	// Entries for other statuses never count.
	_, err = repo.InsertStatusEvent(ctx, &charge.StatusEvent{
		ChargeExternalID: c.ExternalID,
		Status:           charge.StatusCaptureReady,
		EventDate:        time.Now().UTC(),
	})
	require.NoError(t, err)

	count, err = svc.CountCaptureRetries(ctx, c.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIsChargeRetriable(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	svc := newTestService(repo, testutil.NewMockOfferer(), Config{EmitStateTransitionEvents: true, MaxCaptureRetries: 1})

	c := testutil.NewCapturableCharge()
	repo.AddCharge(c)
	ctx := context.Background()

	retriable, err := svc.IsChargeRetriable(ctx, c.ExternalID)
	require.NoError(t, err)
	assert.True(t, retriable)

	for i := 0; i < 2; i++ {
		_, err := repo.InsertStatusEvent(ctx, &charge.StatusEvent{
			ChargeExternalID: c.ExternalID,
			Status:           charge.StatusCaptureApprovedRetry,
			EventDate:        time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	retriable, err = svc.IsChargeRetriable(ctx, c.ExternalID)
	require.NoError(t, err)
	assert.False(t, retriable)
}

func TestCreateCharge(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	offerer := testutil.NewMockOfferer()
	svc := newTestService(repo, offerer, defaultConfig())

	c, err := svc.CreateCharge(context.Background(), CreateChargeRequest{
		Amount:           2500,
		GatewayAccountID: 42,
		GatewayName:      "sandbox",
	})
	require.NoError(t, err)

	assert.Equal(t, charge.StatusCreated, c.Status)
	assert.Equal(t, charge.StatusCreated, repo.StoredStatus(c.ExternalID))

	events := repo.StatusEvents(c.ExternalID)
	require.Len(t, events, 1)
	assert.Equal(t, charge.StatusCreated, events[0].Status)

	offers := offerer.Offers()
	require.Len(t, offers, 1)
	assert.Equal(t, charge.StatusUndefined, offers[0].From)
	assert.Equal(t, charge.StatusCreated, offers[0].To)
}

func TestCreateCharge_InvalidAmount(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	svc := newTestService(repo, testutil.NewMockOfferer(), defaultConfig())

	_, err := svc.CreateCharge(context.Background(), CreateChargeRequest{Amount: 0, GatewayAccountID: 42, GatewayName: "sandbox"})
	assert.ErrorIs(t, err, domainErrors.ErrInvalidInput)
}

func TestCreateTelephoneCharge(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	offerer := testutil.NewMockOfferer()
	svc := newTestService(repo, offerer, defaultConfig())

	c, err := svc.CreateTelephoneCharge(context.Background(), CreateTelephoneChargeRequest{
		Amount:           1200,
		GatewayAccountID: 42,
		GatewayName:      "sandbox",
		ProcessorID:      "proc-1",
		ProviderID:       "prov-1",
		AuthCode:         "666",
		Outcome:          charge.StatusAuthorisationSuccess,
	})
	require.NoError(t, err)

	assert.Equal(t, charge.StatusAuthorisationSuccess, c.Status)
	assert.Equal(t, charge.OriginTelephone, c.Origin)

	events := repo.StatusEvents(c.ExternalID)
	require.Len(t, events, 2)
	assert.Equal(t, charge.StatusPaymentNotificationCreated, events[0].Status)
	assert.Equal(t, charge.StatusAuthorisationSuccess, events[1].Status)
}

func TestSetGatewayTransactionID(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	svc := newTestService(repo, testutil.NewMockOfferer(), defaultConfig())

	c := testutil.NewTestCharge(charge.StatusCaptureReady)
	repo.AddCharge(c)

	require.NoError(t, svc.SetGatewayTransactionID(context.Background(), c, "gw-789"))
	require.NotNil(t, c.GatewayTransactionID)
	assert.Equal(t, "gw-789", *c.GatewayTransactionID)

	// Empty ids are ignored rather than erased.
	require.NoError(t, svc.SetGatewayTransactionID(context.Background(), c, ""))
	assert.Equal(t, "gw-789", *c.GatewayTransactionID)
}

func TestUpdateParityStatus(t *testing.T) {
	repo := testutil.NewMockChargeRepository()
	svc := newTestService(repo, testutil.NewMockOfferer(), defaultConfig())

	c := testutil.NewTestCharge(charge.StatusCaptured)
	repo.AddCharge(c)

	require.NoError(t, svc.UpdateParityStatus(context.Background(), c, charge.ParityDataMatches))
	assert.Equal(t, charge.ParityDataMatches, c.ParityCheckStatus)
	require.NotNil(t, c.ParityCheckDate)
}
