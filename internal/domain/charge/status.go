package charge

// Status represents the internal charge status in the state machine.
// Values match the wire format used by the status ledger.
type Status string

const (
	StatusUndefined                  Status = "UNDEFINED"
	StatusCreated                    Status = "CREATED"
	StatusPaymentNotificationCreated Status = "PAYMENT NOTIFICATION CREATED"
	StatusEnteringCardDetails        Status = "ENTERING CARD DETAILS"
	StatusAuthorisationReady         Status = "AUTHORISATION READY"
	StatusAuthorisationSuccess       Status = "AUTHORISATION SUCCESS"
	StatusAuthorisationRejected      Status = "AUTHORISATION REJECTED"
	StatusAuthorisationError         Status = "AUTHORISATION ERROR"
	StatusAwaitingCaptureRequest     Status = "AWAITING CAPTURE REQUEST"
	StatusCaptureApproved            Status = "CAPTURE APPROVED"
	StatusCaptureApprovedRetry       Status = "CAPTURE APPROVED RETRY"
	StatusCaptureReady               Status = "CAPTURE READY"
	StatusCaptureSubmitted           Status = "CAPTURE SUBMITTED"
	StatusCaptured                   Status = "CAPTURED"
	StatusCaptureError               Status = "CAPTURE ERROR"
	StatusExpired                    Status = "EXPIRED"
	StatusSystemCancelReady          Status = "SYSTEM CANCEL READY"
	StatusSystemCancelled            Status = "SYSTEM CANCELLED"
	StatusUserCancelReady            Status = "USER CANCEL READY"
	StatusUserCancelled              Status = "USER CANCELLED"
)

func (s Status) String() string { return string(s) }

// ParityCheckStatus records the outcome of comparing a charge against the
// ledger service's view during reconciliation.
type ParityCheckStatus string

const (
	ParityUnchecked    ParityCheckStatus = "UNCHECKED"
	ParitySkipped      ParityCheckStatus = "SKIPPED"
	ParityDataMatches  ParityCheckStatus = "DATA_MATCHES"
	ParityDataMismatch ParityCheckStatus = "DATA_MISMATCH"
)

// Origin tags how a charge entered the system.
type Origin string

const (
	OriginWeb       Origin = "web"
	OriginTelephone Origin = "telephone"
)
