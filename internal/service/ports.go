package service

import (
	"context"

	"github.com/pabraksas/pay-connector/internal/domain/charge"
)

// TransactionManager defines the interface for transaction management.
// This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// StateTransitionOfferer receives committed transitions for event synthesis
// and delivery. Implementations must never fail the transition that offered
// the value: delivery problems are recorded, not propagated.
type StateTransitionOfferer interface {
	Offer(ctx context.Context, st charge.StateTransition)
}
