package charge

import (
	"context"
	"time"
)

// Repository is the persistence contract for charges and their status
// ledger. UpdateStatus is a compare-and-set write: it must fail with
// errors.ErrOptimisticLockFailed when the stored status no longer equals
// expectedFrom, which is what makes the locking-status protocol safe without
// a distributed lock.
type Repository interface {
	Create(ctx context.Context, c *Charge) error
	GetByExternalID(ctx context.Context, externalID string) (*Charge, error)

	UpdateStatus(ctx context.Context, externalID string, expectedFrom, to Status) error
	SetStatus(ctx context.Context, externalID string, to Status) error
	SetGatewayTransactionID(ctx context.Context, externalID, gatewayTransactionID string) error
	UpdateParityCheck(ctx context.Context, externalID string, status ParityCheckStatus, checkedAt time.Time) error

	InsertStatusEvent(ctx context.Context, event *StatusEvent) (*StatusEvent, error)
	GetStatusEvents(ctx context.Context, externalID string) ([]*StatusEvent, error)
	CountStatusEvents(ctx context.Context, externalID string, status Status) (int, error)
}
