package charge

// OperationType identifies a gateway operation that locks a charge while in
// flight.
type OperationType string

const (
	OperationAuthorisation OperationType = "Authorisation"
	OperationCapture       OperationType = "Capture"
	OperationCancellation  OperationType = "Cancellation"
)

// lockingStatuses binds each operation to the single status a charge is
// moved into before the gateway call. Holding the locking status is the only
// mutual-exclusion mechanism; there is no distributed lock.
var lockingStatuses = map[OperationType]Status{
	OperationAuthorisation: StatusAuthorisationReady,
	OperationCapture:       StatusCaptureReady,
	OperationCancellation:  StatusSystemCancelReady,
}

var legalPreOperationStatuses = map[OperationType][]Status{
	OperationAuthorisation: {StatusEnteringCardDetails},
	OperationCapture:       {StatusCaptureApproved, StatusCaptureApprovedRetry},
	OperationCancellation:  {StatusAuthorisationSuccess, StatusAwaitingCaptureRequest},
}

// LockingStatus returns the status the operation transitions a charge into
// before calling the gateway.
func (o OperationType) LockingStatus() Status {
	return lockingStatuses[o]
}

// LegalPreOperationStatuses returns the statuses from which the operation may
// acquire its lock.
func (o OperationType) LegalPreOperationStatuses() []Status {
	return legalPreOperationStatuses[o]
}

func (o OperationType) String() string { return string(o) }
