package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pabraksas/pay-connector/internal/domain/charge"
)

// SandboxProvider is the always-succeeding provider used by test gateway
// accounts. Its transaction ids are synthesized locally.
type SandboxProvider struct{}

func NewSandboxProvider() *SandboxProvider { return &SandboxProvider{} }

func (p *SandboxProvider) Name() string { return "sandbox" }

func (p *SandboxProvider) Authorise(ctx context.Context, req AuthoriseRequest) (*Response, error) {
	return &Response{TransactionID: sandboxTxID("auth")}, nil
}

func (p *SandboxProvider) Capture(ctx context.Context, req CaptureRequest) (*Response, error) {
	return &Response{TransactionID: req.GatewayTransactionID}, nil
}

func (p *SandboxProvider) Cancel(ctx context.Context, req CancelRequest) (*Response, error) {
	return &Response{TransactionID: req.GatewayTransactionID}, nil
}

func (p *SandboxProvider) Refund(ctx context.Context, req RefundRequest) (*Response, error) {
	return &Response{TransactionID: sandboxTxID("refund")}, nil
}

// RefundAvailability for sandbox depends only on local charge state: a
// captured charge is refundable, anything terminal-but-not-captured is not.
func (p *SandboxProvider) RefundAvailability(c *charge.Charge) RefundAvailability {
	switch {
	case c.HasStatus(charge.StatusCaptured):
		return RefundAvailable
	case c.InTerminalState():
		return RefundUnavailable
	default:
		return RefundPending
	}
}

func sandboxTxID(prefix string) string {
	return fmt.Sprintf("sandbox_%s_%s", prefix, uuid.New().String()[:8])
}
