package gateway

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pabraksas/pay-connector/internal/domain/charge"
	domainErrors "github.com/pabraksas/pay-connector/internal/domain/errors"
)

// MockProvider simulates an unreliable card gateway for tests and load
// environments.
type MockProvider struct {
	name        string
	failureRate float64 // 0.0 to 1.0
	timeoutRate float64 // 0.0 to 1.0
	latency     time.Duration
}

type MockProviderOption func(*MockProvider)

func WithFailureRate(rate float64) MockProviderOption {
	return func(p *MockProvider) { p.failureRate = rate }
}

func WithTimeoutRate(rate float64) MockProviderOption {
	return func(p *MockProvider) { p.timeoutRate = rate }
}

func WithLatency(d time.Duration) MockProviderOption {
	return func(p *MockProvider) { p.latency = d }
}

func NewMockProvider(name string, opts ...MockProviderOption) *MockProvider {
	p := &MockProvider{name: name, latency: 100 * time.Millisecond}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *MockProvider) Name() string { return p.name }

func (p *MockProvider) Authorise(ctx context.Context, req AuthoriseRequest) (*Response, error) {
	return p.respond(ctx, "auth")
}

func (p *MockProvider) Capture(ctx context.Context, req CaptureRequest) (*Response, error) {
	return p.respond(ctx, "capture")
}

func (p *MockProvider) Cancel(ctx context.Context, req CancelRequest) (*Response, error) {
	return p.respond(ctx, "cancel")
}

func (p *MockProvider) Refund(ctx context.Context, req RefundRequest) (*Response, error) {
	return p.respond(ctx, "refund")
}

func (p *MockProvider) RefundAvailability(c *charge.Charge) RefundAvailability {
	if c.HasStatus(charge.StatusCaptured) {
		return RefundAvailable
	}
	return RefundUnavailable
}

func (p *MockProvider) respond(ctx context.Context, op string) (*Response, error) {
	select {
	case <-time.After(p.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if rand.Float64() < p.timeoutRate {
		return nil, domainErrors.ErrGatewayTimeout
	}
	if rand.Float64() < p.failureRate {
		return nil, domainErrors.ErrGatewayRejected
	}
	return &Response{TransactionID: p.name + "_" + op + "_" + uuid.New().String()[:8]}, nil
}
