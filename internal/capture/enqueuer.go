package capture

import (
	"context"
	"fmt"

	"github.com/pabraksas/pay-connector/internal/domain/charge"
	"github.com/pabraksas/pay-connector/internal/service"
	"github.com/rs/zerolog"
)

// Enqueuer moves authorised charges onto the capture queue. Delayed-capture
// charges park in AWAITING CAPTURE REQUEST and are only enqueued once
// MarkDelayedChargeReady is called.
type Enqueuer struct {
	charges  *service.ChargeService
	producer Producer
	logger   zerolog.Logger
}

func NewEnqueuer(charges *service.ChargeService, producer Producer, logger zerolog.Logger) *Enqueuer {
	return &Enqueuer{
		charges:  charges,
		producer: producer,
		logger:   logger.With().Str("component", "capture_enqueuer").Logger(),
	}
}

// MarkChargeEligibleForCapture is called after a successful authorisation.
// Immediate-capture charges are approved and enqueued; delayed-capture
// charges wait for an explicit capture request.
func (e *Enqueuer) MarkChargeEligibleForCapture(ctx context.Context, chargeExternalID string) (*charge.Charge, error) {
	c, err := e.charges.FindByExternalID(ctx, chargeExternalID)
	if err != nil {
		return nil, err
	}

	if c.DelayedCapture {
		return e.charges.Transition(ctx, c, charge.StatusAwaitingCaptureRequest)
	}
	return e.approveAndEnqueue(ctx, c)
}

// MarkDelayedChargeReady releases a charge parked in AWAITING CAPTURE
// REQUEST onto the capture queue.
func (e *Enqueuer) MarkDelayedChargeReady(ctx context.Context, chargeExternalID string) (*charge.Charge, error) {
	c, err := e.charges.FindByExternalID(ctx, chargeExternalID)
	if err != nil {
		return nil, err
	}
	return e.approveAndEnqueue(ctx, c)
}

func (e *Enqueuer) approveAndEnqueue(ctx context.Context, c *charge.Charge) (*charge.Charge, error) {
	c, err := e.charges.Transition(ctx, c, charge.StatusCaptureApproved)
	if err != nil {
		return nil, err
	}

	// The transition is already committed. If the enqueue fails the charge
	// stays in CAPTURE APPROVED and the caller retries the enqueue alone.
	if err := e.producer.AddChargeToQueue(ctx, c.ExternalID); err != nil {
		e.logger.Error().Err(err).
			Str("charge_external_id", c.ExternalID).
			Msg("Failed to enqueue approved charge for capture")
		return c, fmt.Errorf("enqueue charge %s for capture: %w", c.ExternalID, err)
	}

	e.logger.Info().
		Str("charge_external_id", c.ExternalID).
		Msg("Charge added to capture queue")
	return c, nil
}
