package errors

import (
	"errors"
	"fmt"
)

var (
	// Charge errors
	ErrChargeNotFound       = errors.New("charge not found")
	ErrOptimisticLockFailed = errors.New("optimistic lock conflict")

	// State machine errors
	ErrInvalidStateTransition      = errors.New("invalid state transition")
	ErrInvalidForceStateTransition = errors.New("invalid force state transition")
	ErrOperationAlreadyInProgress  = errors.New("operation already in progress")
	ErrIllegalChargeState          = errors.New("charge is in an illegal state for this operation")

	// Gateway errors
	ErrGatewayNotFound    = errors.New("gateway provider not found")
	ErrGatewayUnavailable = errors.New("gateway provider unavailable")
	ErrGatewayRejected    = errors.New("capture rejected by gateway")
	ErrGatewayTimeout     = errors.New("gateway request timeout")

	// Ledger service errors
	ErrLedgerTransactionNotFound = errors.New("transaction not found in ledger")

	// Event bus errors
	ErrEventBusUnavailable = errors.New("event bus unavailable")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)

// InvalidStateTransitionError reports a requested edge that is not in the
// transition graph. Caller error, never retried.
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("charge state transition [%s] -> [%s] not allowed", e.From, e.To)
}

func (e *InvalidStateTransitionError) Unwrap() error { return ErrInvalidStateTransition }

func NewInvalidStateTransitionError(from, to string) *InvalidStateTransitionError {
	return &InvalidStateTransitionError{From: from, To: to}
}

// InvalidForceStateTransitionError reports a forced transition to a status
// with no registered correction event. Configuration error, fail fast.
type InvalidForceStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidForceStateTransitionError) Error() string {
	return fmt.Sprintf("forced charge state transition [%s] -> [%s] has no correction event", e.From, e.To)
}

func (e *InvalidForceStateTransitionError) Unwrap() error { return ErrInvalidForceStateTransition }

func NewInvalidForceStateTransitionError(from, to string) *InvalidForceStateTransitionError {
	return &InvalidForceStateTransitionError{From: from, To: to}
}

// OperationAlreadyInProgressError means another worker holds the locking
// status for this charge. Callers should back off, not treat it as failure.
type OperationAlreadyInProgressError struct {
	Operation        string
	ChargeExternalID string
}

func (e *OperationAlreadyInProgressError) Error() string {
	return fmt.Sprintf("%s operation already in progress for charge [%s]", e.Operation, e.ChargeExternalID)
}

func (e *OperationAlreadyInProgressError) Unwrap() error { return ErrOperationAlreadyInProgress }

func NewOperationAlreadyInProgressError(operation, chargeExternalID string) *OperationAlreadyInProgressError {
	return &OperationAlreadyInProgressError{Operation: operation, ChargeExternalID: chargeExternalID}
}

// IllegalChargeStateError means the charge status is incompatible with the
// requested operation and the charge is not merely locked.
type IllegalChargeStateError struct {
	ChargeExternalID string
}

func (e *IllegalChargeStateError) Error() string {
	return fmt.Sprintf("charge [%s] is in an illegal state for this operation", e.ChargeExternalID)
}

func (e *IllegalChargeStateError) Unwrap() error { return ErrIllegalChargeState }

func NewIllegalChargeStateError(chargeExternalID string) *IllegalChargeStateError {
	return &IllegalChargeStateError{ChargeExternalID: chargeExternalID}
}
