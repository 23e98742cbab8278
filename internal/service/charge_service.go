package service

import (
	"context"
	"errors"
	"time"

	"github.com/pabraksas/pay-connector/internal/domain/charge"
	domainErrors "github.com/pabraksas/pay-connector/internal/domain/errors"
	"github.com/pabraksas/pay-connector/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// Config is the explicit configuration surface of the state machine. It is
// injected, never read from ambient global state.
type Config struct {
	// EmitStateTransitionEvents gates whether accepted transitions are
	// offered to the event outbox.
	EmitStateTransitionEvents bool
	// MaxCaptureRetries is the retry budget before a charge is marked
	// CAPTURE ERROR.
	MaxCaptureRetries int
}

// ChargeService is the charge state machine. All status mutation goes
// through it; no other component branches on raw status values.
type ChargeService struct {
	chargeRepo charge.Repository
	txManager  TransactionManager
	offerer    StateTransitionOfferer
	cfg        Config
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

func NewChargeService(
	chargeRepo charge.Repository,
	txManager TransactionManager,
	offerer StateTransitionOfferer,
	cfg Config,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *ChargeService {
	return &ChargeService{
		chargeRepo: chargeRepo,
		txManager:  txManager,
		offerer:    offerer,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
	}
}

// Transition moves a charge along a legal graph edge, appending a ledger
// entry, and offers the committed transition to the event outbox.
func (s *ChargeService) Transition(ctx context.Context, c *charge.Charge, target charge.Status) (*charge.Charge, error) {
	return s.TransitionAt(ctx, c, target, nil)
}

// TransitionAt is Transition with a gateway-supplied event time. The status
// update and the ledger append commit as one transaction; the outbox offer
// happens after commit so a delivery failure can never roll back the
// transition.
func (s *ChargeService) TransitionAt(ctx context.Context, c *charge.Charge, target charge.Status, eventTime *time.Time) (*charge.Charge, error) {
	from := c.Status
	if err := c.SetStatus(target); err != nil {
		return nil, err
	}

	eventDate := time.Now().UTC()
	if eventTime != nil {
		eventDate = eventTime.UTC()
	}

	var statusEvent *charge.StatusEvent
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.chargeRepo.UpdateStatus(txCtx, c.ExternalID, from, target); err != nil {
			return err
		}
		var err error
		statusEvent, err = s.chargeRepo.InsertStatusEvent(txCtx, &charge.StatusEvent{
			ChargeExternalID: c.ExternalID,
			Status:           target,
			EventDate:        eventDate,
		})
		return err
	})
	if err != nil {
		// The write never happened; the in-memory charge must agree.
		c.Status = from
		return nil, err
	}

	s.logger.Info().
		Str("charge_external_id", c.ExternalID).
		Str("from_status", string(from)).
		Str("to_status", string(target)).
		Msg("Charge state transition")
	s.metrics.TransitionsTotal.WithLabelValues(string(from), string(target)).Inc()

	if s.cfg.EmitStateTransitionEvents {
		s.offerer.Offer(ctx, charge.StateTransition{
			ChargeExternalID: c.ExternalID,
			From:             from,
			To:               target,
			StatusEventID:    statusEvent.ID,
			EventDate:        eventDate,
		})
	}
	return c, nil
}

// TransitionByExternalID resolves the charge and applies Transition.
func (s *ChargeService) TransitionByExternalID(ctx context.Context, externalID string, target charge.Status) (*charge.Charge, error) {
	c, err := s.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.Transition(ctx, c, target)
}

// LockForProcessing transitions the charge into the operation's locking
// status. Exactly one concurrent caller wins; losers fail with
// OperationAlreadyInProgress. This is the sole mutual-exclusion mechanism
// for gateway operations.
func (s *ChargeService) LockForProcessing(ctx context.Context, c *charge.Charge, op charge.OperationType) (*charge.Charge, error) {
	lockingStatus := op.LockingStatus()

	if c.HasStatus(lockingStatus) {
		return nil, domainErrors.NewOperationAlreadyInProgressError(op.String(), c.ExternalID)
	}
	if !c.HasStatus(op.LegalPreOperationStatuses()...) {
		s.logger.Error().
			Str("charge_external_id", c.ExternalID).
			Str("charge_status", string(c.Status)).
			Str("operation", op.String()).
			Msg("Charge not in a legal state for operation")
		return nil, domainErrors.NewIllegalChargeStateError(c.ExternalID)
	}

	s.logger.Info().
		Str("charge_external_id", c.ExternalID).
		Str("charge_status", string(c.Status)).
		Str("operation", op.String()).
		Str("locking_status", string(lockingStatus)).
		Msg("Card pre-operation")

	updated, err := s.Transition(ctx, c, lockingStatus)
	if err == nil {
		return updated, nil
	}

	// A compare-and-set conflict means a concurrent writer changed the
	// status under us. Reload to distinguish "someone else took the lock"
	// from a genuinely incompatible state.
	if errors.Is(err, domainErrors.ErrOptimisticLockFailed) {
		current, findErr := s.FindByExternalID(ctx, c.ExternalID)
		if findErr != nil {
			return nil, findErr
		}
		c.Status = current.Status
		if current.HasStatus(lockingStatus) {
			return nil, domainErrors.NewOperationAlreadyInProgressError(op.String(), c.ExternalID)
		}
		return nil, domainErrors.NewIllegalChargeStateError(c.ExternalID)
	}
	return nil, err
}

// ForceTransition bypasses the graph to align local state with the ledger
// service's ground truth. It only succeeds for targets with a registered
// correction event, which is emitted instead of the default transition
// event so consumers can tell corrections from organic progress.
func (s *ChargeService) ForceTransition(ctx context.Context, c *charge.Charge, target charge.Status) (*charge.Charge, error) {
	from := c.Status

	eventType, ok := charge.EventForForceUpdate(target)
	if !ok {
		return nil, domainErrors.NewInvalidForceStateTransitionError(string(from), string(target))
	}

	s.logger.Info().
		Str("charge_external_id", c.ExternalID).
		Str("from_status", string(from)).
		Str("to_status", string(target)).
		Msg("Force state transition")

	eventDate := time.Now().UTC()
	var statusEvent *charge.StatusEvent
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.chargeRepo.SetStatus(txCtx, c.ExternalID, target); err != nil {
			return err
		}
		var err error
		statusEvent, err = s.chargeRepo.InsertStatusEvent(txCtx, &charge.StatusEvent{
			ChargeExternalID: c.ExternalID,
			Status:           target,
			EventDate:        eventDate,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	c.SetStatusUnchecked(target)
	s.metrics.TransitionsTotal.WithLabelValues(string(from), string(target)).Inc()

	if s.cfg.EmitStateTransitionEvents {
		s.offerer.Offer(ctx, charge.StateTransition{
			ChargeExternalID:  c.ExternalID,
			From:              from,
			To:                target,
			StatusEventID:     statusEvent.ID,
			EventDate:         eventDate,
			EventTypeOverride: eventType,
		})
	}
	return c, nil
}

// CountCaptureRetries derives the retry count from the ledger: one CAPTURE
// APPROVED RETRY entry per failed capture attempt. No other flow may append
// that status or the count would be wrong.
func (s *ChargeService) CountCaptureRetries(ctx context.Context, externalID string) (int, error) {
	return s.chargeRepo.CountStatusEvents(ctx, externalID, charge.StatusCaptureApprovedRetry)
}

// IsChargeRetriable reports whether the charge's capture retry budget is
// not yet exhausted.
func (s *ChargeService) IsChargeRetriable(ctx context.Context, externalID string) (bool, error) {
	count, err := s.CountCaptureRetries(ctx, externalID)
	if err != nil {
		return false, err
	}
	return count <= s.cfg.MaxCaptureRetries, nil
}

// FindByExternalID resolves a charge or fails with ErrChargeNotFound.
func (s *ChargeService) FindByExternalID(ctx context.Context, externalID string) (*charge.Charge, error) {
	return s.chargeRepo.GetByExternalID(ctx, externalID)
}

// StatusHistory returns the charge's ledger in insertion order.
func (s *ChargeService) StatusHistory(ctx context.Context, externalID string) ([]*charge.StatusEvent, error) {
	return s.chargeRepo.GetStatusEvents(ctx, externalID)
}

// SetGatewayTransactionID records the gateway's transaction reference for a
// charge.
func (s *ChargeService) SetGatewayTransactionID(ctx context.Context, c *charge.Charge, gatewayTransactionID string) error {
	if gatewayTransactionID == "" {
		return nil
	}
	if err := s.chargeRepo.SetGatewayTransactionID(ctx, c.ExternalID, gatewayTransactionID); err != nil {
		return err
	}
	c.SetGatewayTransactionID(gatewayTransactionID)
	return nil
}

// UpdateParityStatus records the outcome of a reconciliation parity check.
func (s *ChargeService) UpdateParityStatus(ctx context.Context, c *charge.Charge, status charge.ParityCheckStatus) error {
	checkedAt := time.Now().UTC()
	if err := s.chargeRepo.UpdateParityCheck(ctx, c.ExternalID, status, checkedAt); err != nil {
		return err
	}
	c.ParityCheckStatus = status
	c.ParityCheckDate = &checkedAt
	return nil
}
