package charge

// Event types synthesized from graph edges. Downstream consumers key on
// these; they must stay stable across releases.
const (
	EventPaymentCreated             = "payment.created"
	EventPaymentNotificationCreated = "payment.notification_created"
	EventPaymentStarted             = "payment.started"
	EventAuthorisationStarted       = "payment.authorisation_started"
	EventAuthorisationSucceeded     = "payment.authorisation_succeeded"
	EventAuthorisationRejected      = "payment.authorisation_rejected"
	EventAuthorisationError         = "payment.authorisation_error"
	EventAwaitingCaptureRequest     = "payment.awaiting_capture_request"
	EventCaptureApproved            = "payment.capture_approved"
	EventCaptureRetried             = "payment.capture_retried"
	EventCaptureSubmitted           = "payment.capture_submitted"
	EventCaptureConfirmed           = "payment.capture_confirmed"
	EventCaptureError               = "payment.capture_error"
	EventPaymentExpired             = "payment.expired"
	EventCancelledByUser            = "payment.cancelled_by_user"
	EventCancelledByService         = "payment.cancelled_by_service"
	EventStatusChanged              = "payment.status_changed"

	// Correction events, emitted only by forced transitions so consumers can
	// distinguish reconciliation overrides from organic progress.
	EventCorrectedToCaptured              = "payment.status_corrected_to_captured_to_match_gateway_status"
	EventCorrectedToAuthorisationRejected = "payment.status_corrected_to_authorisation_rejected_to_match_gateway_status"
	EventCorrectedToAuthorisationError    = "payment.status_corrected_to_authorisation_error_to_match_gateway_status"
)

type edge struct {
	to        Status
	eventType string
}

// transitions is the full directed graph of legal status changes. Terminal
// statuses have no outgoing edges. An empty eventType falls back to the
// generic status-changed event.
var transitions = map[Status][]edge{
	StatusUndefined: {
		{StatusCreated, EventPaymentCreated},
		{StatusPaymentNotificationCreated, EventPaymentNotificationCreated},
	},
	StatusCreated: {
		{StatusEnteringCardDetails, EventPaymentStarted},
		{StatusExpired, EventPaymentExpired},
		{StatusSystemCancelled, EventCancelledByService},
	},
	StatusPaymentNotificationCreated: {
		{StatusAuthorisationSuccess, EventAuthorisationSucceeded},
		{StatusAuthorisationRejected, EventAuthorisationRejected},
		{StatusAuthorisationError, EventAuthorisationError},
	},
	StatusEnteringCardDetails: {
		{StatusAuthorisationReady, EventAuthorisationStarted},
		{StatusExpired, EventPaymentExpired},
		{StatusUserCancelled, EventCancelledByUser},
		{StatusSystemCancelled, EventCancelledByService},
	},
	StatusAuthorisationReady: {
		{StatusAuthorisationSuccess, EventAuthorisationSucceeded},
		{StatusAuthorisationRejected, EventAuthorisationRejected},
		{StatusAuthorisationError, EventAuthorisationError},
	},
	StatusAuthorisationSuccess: {
		{StatusAwaitingCaptureRequest, EventAwaitingCaptureRequest},
		{StatusCaptureApproved, EventCaptureApproved},
		{StatusSystemCancelReady, ""},
		{StatusUserCancelReady, ""},
	},
	StatusAwaitingCaptureRequest: {
		{StatusCaptureApproved, EventCaptureApproved},
		{StatusExpired, EventPaymentExpired},
		{StatusSystemCancelReady, ""},
		{StatusUserCancelReady, ""},
	},
	StatusCaptureApproved: {
		{StatusCaptureReady, ""},
		{StatusCaptureApprovedRetry, EventCaptureRetried},
	},
	StatusCaptureApprovedRetry: {
		{StatusCaptureReady, ""},
		{StatusCaptureError, EventCaptureError},
	},
	StatusCaptureReady: {
		{StatusCaptureSubmitted, EventCaptureSubmitted},
		{StatusCaptureApprovedRetry, EventCaptureRetried},
		{StatusCaptureError, EventCaptureError},
	},
	StatusCaptureSubmitted: {
		{StatusCaptured, EventCaptureConfirmed},
	},
	StatusSystemCancelReady: {
		{StatusSystemCancelled, EventCancelledByService},
	},
	StatusUserCancelReady: {
		{StatusUserCancelled, EventCancelledByUser},
	},

	// Terminal sinks.
	StatusAuthorisationRejected: {},
	StatusAuthorisationError:    {},
	StatusCaptured:              {},
	StatusCaptureError:          {},
	StatusExpired:               {},
	StatusSystemCancelled:       {},
	StatusUserCancelled:         {},
}

// forceUpdateEvents maps forced-transition targets to their correction event
// types. A forced transition to any other status is a configuration error.
var forceUpdateEvents = map[Status]string{
	StatusCaptured:              EventCorrectedToCaptured,
	StatusAuthorisationRejected: EventCorrectedToAuthorisationRejected,
	StatusAuthorisationError:    EventCorrectedToAuthorisationError,
}

// IsLegal reports whether the edge from -> to exists in the graph.
func IsLegal(from, to Status) bool {
	for _, e := range transitions[from] {
		if e.to == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing edges.
func IsTerminal(s Status) bool {
	edges, known := transitions[s]
	return known && len(edges) == 0
}

// EventForTransition returns the event type synthesized for a legal edge.
// The second return is false when the edge is not in the graph.
func EventForTransition(from, to Status) (string, bool) {
	for _, e := range transitions[from] {
		if e.to == to {
			if e.eventType == "" {
				return EventStatusChanged, true
			}
			return e.eventType, true
		}
	}
	return "", false
}

// EventForForceUpdate returns the correction event type registered for a
// forced-transition target, if any.
func EventForForceUpdate(target Status) (string, bool) {
	eventType, ok := forceUpdateEvents[target]
	return eventType, ok
}

// AllStatuses returns every status known to the graph, for table tests and
// migrations.
func AllStatuses() []Status {
	return []Status{
		StatusUndefined,
		StatusCreated,
		StatusPaymentNotificationCreated,
		StatusEnteringCardDetails,
		StatusAuthorisationReady,
		StatusAuthorisationSuccess,
		StatusAuthorisationRejected,
		StatusAuthorisationError,
		StatusAwaitingCaptureRequest,
		StatusCaptureApproved,
		StatusCaptureApprovedRetry,
		StatusCaptureReady,
		StatusCaptureSubmitted,
		StatusCaptured,
		StatusCaptureError,
		StatusExpired,
		StatusSystemCancelReady,
		StatusSystemCancelled,
		StatusUserCancelReady,
		StatusUserCancelled,
	}
}
