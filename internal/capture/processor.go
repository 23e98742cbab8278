package capture

import (
	"context"
	"errors"
	"time"

	"github.com/pabraksas/pay-connector/internal/domain/charge"
	domainErrors "github.com/pabraksas/pay-connector/internal/domain/errors"
	"github.com/pabraksas/pay-connector/internal/gateway"
	"github.com/pabraksas/pay-connector/internal/infrastructure/observability"
	"github.com/pabraksas/pay-connector/internal/service"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	resultCaptured  = "captured"
	resultRetry     = "retry"
	resultError     = "error"
	resultNoop      = "noop"
	resultDropped   = "dropped"
	resultContended = "contended"
)

// Processor consumes capture work items and drives charges through the
// capture leg of the state machine. Any number of processors may run
// concurrently; the locking-status protocol is the only coordination.
type Processor struct {
	queue      Queue
	charges    *service.ChargeService
	providers  *gateway.Factory
	maxRetries int
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

func NewProcessor(
	queue Queue,
	charges *service.ChargeService,
	providers *gateway.Factory,
	maxRetries int,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Processor {
	return &Processor{
		queue:      queue,
		charges:    charges,
		providers:  providers,
		maxRetries: maxRetries,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run processes batches until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := p.ProcessBatch(ctx); err != nil {
			p.logger.Error().Err(err).Msg("Capture batch failed")
		}
	}
}

// ProcessBatch pulls one bounded batch from the queue and handles each
// message. Per-message failures never abort the batch.
func (p *Processor) ProcessBatch(ctx context.Context) error {
	messages, err := p.queue.Receive(ctx)
	if err != nil {
		return err
	}
	for _, m := range messages {
		p.handleMessage(ctx, m)
	}
	return nil
}

func (p *Processor) handleMessage(ctx context.Context, m Message) {
	ctx, span := otel.Tracer("capture").Start(ctx, "capture.handle_message")
	span.SetAttributes(attribute.String("charge_external_id", m.ChargeExternalID))
	defer span.End()

	start := time.Now()
	defer func() {
		p.metrics.CaptureDuration.Observe(time.Since(start).Seconds())
	}()

	logger := p.logger.With().Str("charge_external_id", m.ChargeExternalID).Logger()
	logger.Info().Msg("Charge capture message received")

	c, err := p.charges.FindByExternalID(ctx, m.ChargeExternalID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrChargeNotFound) {
			// Can never resolve; retrying is pointless.
			logger.Warn().Msg("Capture message references unknown charge, dropping")
			p.ack(ctx, m, resultDropped)
			return
		}
		logger.Error().Err(err).Msg("Failed to load charge for capture")
		return
	}

	retries, err := p.charges.CountCaptureRetries(ctx, c.ExternalID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to count capture retries")
		return
	}
	if retries > p.maxRetries {
		p.markTerminalCaptureError(ctx, c, m, logger)
		return
	}

	locked, err := p.charges.LockForProcessing(ctx, c, charge.OperationCapture)
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrOperationAlreadyInProgress):
			// Another worker (or a stale redelivery) owns the charge; the
			// queue will redeliver if it dies.
			logger.Info().Msg("Capture already in progress, leaving message for redelivery")
			p.metrics.CapturesTotal.WithLabelValues(resultContended).Inc()
		case errors.Is(err, domainErrors.ErrIllegalChargeState):
			// Typically a redelivered message for a charge that already
			// captured. Acking makes the redelivery a no-op.
			logger.Info().Str("charge_status", string(c.Status)).Msg("Charge not capturable, dropping message")
			p.ack(ctx, m, resultNoop)
		default:
			logger.Error().Err(err).Msg("Failed to lock charge for capture")
		}
		return
	}
	c = locked

	provider, breaker, err := p.providers.Get(c.GatewayName)
	if err != nil {
		logger.Error().Err(err).Msg("No gateway provider for charge")
		p.handleCaptureFailure(ctx, c, m, logger)
		return
	}

	gatewayTxID := ""
	if c.GatewayTransactionID != nil {
		gatewayTxID = *c.GatewayTransactionID
	}
	resp, err := breaker.Execute(func() (*gateway.Response, error) {
		return provider.Capture(ctx, gateway.CaptureRequest{
			ChargeExternalID:     c.ExternalID,
			GatewayTransactionID: gatewayTxID,
			Amount:               c.Amount,
		})
	})
	if err != nil {
		logger.Info().Err(err).Msg("Gateway capture failed")
		p.handleCaptureFailure(ctx, c, m, logger)
		return
	}

	if err := p.charges.SetGatewayTransactionID(ctx, c, resp.TransactionID); err != nil {
		logger.Error().Err(err).Msg("Failed to store gateway transaction id")
	}
	if _, err := p.charges.Transition(ctx, c, charge.StatusCaptureSubmitted); err != nil {
		logger.Error().Err(err).Msg("Failed to mark capture submitted")
		return
	}
	if _, err := p.charges.Transition(ctx, c, charge.StatusCaptured); err != nil {
		logger.Error().Err(err).Msg("Failed to mark charge captured")
		return
	}
	logger.Info().Str("gateway_transaction_id", resp.TransactionID).Msg("Charge captured")
	p.ack(ctx, m, resultCaptured)
}

// handleCaptureFailure releases the lock by transitioning into the retry
// status (which is also what the retry counter counts), then either leaves
// the message for redelivery or, once the budget is spent, marks the charge
// CAPTURE ERROR and acks.
func (p *Processor) handleCaptureFailure(ctx context.Context, c *charge.Charge, m Message, logger zerolog.Logger) {
	if _, err := p.charges.Transition(ctx, c, charge.StatusCaptureApprovedRetry); err != nil {
		logger.Error().Err(err).Msg("Failed to mark capture for retry")
		return
	}

	retries, err := p.charges.CountCaptureRetries(ctx, c.ExternalID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to count capture retries")
		return
	}
	if retries > p.maxRetries {
		p.markTerminalCaptureError(ctx, c, m, logger)
		return
	}

	logger.Info().Int("capture_retries", retries).Msg("Capture scheduled for retry via queue redelivery")
	p.metrics.CapturesTotal.WithLabelValues(resultRetry).Inc()
}

func (p *Processor) markTerminalCaptureError(ctx context.Context, c *charge.Charge, m Message, logger zerolog.Logger) {
	if c.InTerminalState() {
		// Stale redelivery for a charge that already resolved, whether it
		// burned its budget or captured anyway. Nothing left to transition.
		p.ack(ctx, m, resultNoop)
		return
	}
	logger.Error().Int("max_retries", p.maxRetries).Msg("Capture retry budget exhausted, marking charge as capture error")
	if _, err := p.charges.Transition(ctx, c, charge.StatusCaptureError); err != nil {
		logger.Error().Err(err).Msg("Failed to mark charge as capture error")
		return
	}
	p.ack(ctx, m, resultError)
}

func (p *Processor) ack(ctx context.Context, m Message, result string) {
	if err := p.queue.MarkProcessed(ctx, m); err != nil {
		p.logger.Error().Err(err).Str("message_id", m.ID).Msg("Failed to ack capture message")
		return
	}
	p.metrics.CapturesTotal.WithLabelValues(result).Inc()
}
