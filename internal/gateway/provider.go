package gateway

import (
	"context"

	"github.com/pabraksas/pay-connector/internal/domain/charge"
)

// RefundAvailability is the externally-visible refund state mapped from a
// provider's own model.
type RefundAvailability string

const (
	RefundAvailable   RefundAvailability = "available"
	RefundUnavailable RefundAvailability = "unavailable"
	RefundPending     RefundAvailability = "pending"
	RefundFull        RefundAvailability = "full"
)

// Response is the common result of a gateway operation.
type Response struct {
	TransactionID string
	// SessionID is set by providers that hand back a session for 3DS flows.
	SessionID string
}

// CaptureRequest asks the provider to finalise collection of previously
// authorised funds.
type CaptureRequest struct {
	ChargeExternalID     string
	GatewayTransactionID string
	Amount               int64
}

type AuthoriseRequest struct {
	ChargeExternalID string
	Amount           int64
	CardNumber       string
	CardholderName   string
	ExpiryMonth      int
	ExpiryYear       int
}

type CancelRequest struct {
	ChargeExternalID     string
	GatewayTransactionID string
}

type RefundRequest struct {
	ChargeExternalID     string
	GatewayTransactionID string
	Amount               int64
}

// Provider is the polymorphic gateway capability. Errors follow the domain
// taxonomy: ErrGatewayRejected for explicit declines, ErrGatewayTimeout and
// ErrGatewayUnavailable for transport problems. All are redeliverable from
// the capture queue's point of view.
type Provider interface {
	Name() string
	Authorise(ctx context.Context, req AuthoriseRequest) (*Response, error)
	Capture(ctx context.Context, req CaptureRequest) (*Response, error)
	Cancel(ctx context.Context, req CancelRequest) (*Response, error)
	Refund(ctx context.Context, req RefundRequest) (*Response, error)
	RefundAvailability(c *charge.Charge) RefundAvailability
}
