package charge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLegal_HappyPathEdges(t *testing.T) {
	path := []Status{
		StatusUndefined,
		StatusCreated,
		StatusEnteringCardDetails,
		StatusAuthorisationReady,
		StatusAuthorisationSuccess,
		StatusCaptureApproved,
		StatusCaptureReady,
		StatusCaptureSubmitted,
		StatusCaptured,
	}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, IsLegal(path[i], path[i+1]),
			"expected %s -> %s to be legal", path[i], path[i+1])
	}
}

func TestIsLegal_IllegalEdges(t *testing.T) {
	tests := []struct {
		from, to Status
	}{
		{StatusCreated, StatusCaptured},
		{StatusCreated, StatusAuthorisationSuccess},
		{StatusCaptured, StatusCaptureReady},
		{StatusCaptured, StatusCreated},
		{StatusAuthorisationRejected, StatusAuthorisationSuccess},
		{StatusCaptureError, StatusCaptureReady},
		{StatusExpired, StatusCreated},
		{StatusCaptureSubmitted, StatusCaptureReady},
		{StatusCaptureReady, StatusCaptured},
		{StatusUndefined, StatusAuthorisationSuccess},
	}
	for _, tt := range tests {
		assert.False(t, IsLegal(tt.from, tt.to),
			"expected %s -> %s to be illegal", tt.from, tt.to)
	}
}

func TestIsLegal_SelfTransitionsAreIllegal(t *testing.T) {
	for _, s := range AllStatuses() {
		assert.False(t, IsLegal(s, s), "self edge on %s", s)
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []Status{
		StatusCaptured,
		StatusCaptureError,
		StatusAuthorisationRejected,
		StatusAuthorisationError,
		StatusExpired,
		StatusSystemCancelled,
		StatusUserCancelled,
	}
	for _, s := range terminal {
		assert.True(t, IsTerminal(s), "expected %s to be terminal", s)
	}

	nonTerminal := []Status{
		StatusUndefined,
		StatusCreated,
		StatusEnteringCardDetails,
		StatusAuthorisationReady,
		StatusAuthorisationSuccess,
		StatusCaptureApproved,
		StatusCaptureApprovedRetry,
		StatusCaptureReady,
		StatusCaptureSubmitted,
	}
	for _, s := range nonTerminal {
		assert.False(t, IsTerminal(s), "expected %s not to be terminal", s)
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	for _, from := range AllStatuses() {
		if !IsTerminal(from) {
			continue
		}
		for _, to := range AllStatuses() {
			assert.False(t, IsLegal(from, to), "terminal %s has edge to %s", from, to)
		}
	}
}

func TestEventForTransition(t *testing.T) {
	tests := []struct {
		from, to  Status
		eventType string
	}{
		{StatusUndefined, StatusCreated, EventPaymentCreated},
		{StatusCreated, StatusEnteringCardDetails, EventPaymentStarted},
		{StatusAuthorisationReady, StatusAuthorisationSuccess, EventAuthorisationSucceeded},
		{StatusCaptureApproved, StatusCaptureApprovedRetry, EventCaptureRetried},
		{StatusCaptureSubmitted, StatusCaptured, EventCaptureConfirmed},
		{StatusCaptureApprovedRetry, StatusCaptureError, EventCaptureError},
		{StatusSystemCancelReady, StatusSystemCancelled, EventCancelledByService},
	}
	for _, tt := range tests {
		eventType, ok := EventForTransition(tt.from, tt.to)
		require.True(t, ok, "%s -> %s", tt.from, tt.to)
		assert.Equal(t, tt.eventType, eventType)
	}
}

func TestEventForTransition_GenericFallback(t *testing.T) {
	// Edges into locking statuses carry no dedicated event.
	eventType, ok := EventForTransition(StatusCaptureApproved, StatusCaptureReady)
	require.True(t, ok)
	assert.Equal(t, EventStatusChanged, eventType)

	eventType, ok = EventForTransition(StatusAuthorisationSuccess, StatusUserCancelReady)
	require.True(t, ok)
	assert.Equal(t, EventStatusChanged, eventType)
}

func TestEventForTransition_UnknownEdge(t *testing.T) {
	_, ok := EventForTransition(StatusCreated, StatusCaptured)
	assert.False(t, ok)
}

func TestEventForForceUpdate(t *testing.T) {
	tests := []struct {
		target    Status
		eventType string
	}{
		{StatusCaptured, EventCorrectedToCaptured},
		{StatusAuthorisationRejected, EventCorrectedToAuthorisationRejected},
		{StatusAuthorisationError, EventCorrectedToAuthorisationError},
	}
	for _, tt := range tests {
		eventType, ok := EventForForceUpdate(tt.target)
		require.True(t, ok, "target %s", tt.target)
		assert.Equal(t, tt.eventType, eventType)
	}
}

func TestEventForForceUpdate_UnmappedTargets(t *testing.T) {
	for _, s := range AllStatuses() {
		if s == StatusCaptured || s == StatusAuthorisationRejected || s == StatusAuthorisationError {
			continue
		}
		_, ok := EventForForceUpdate(s)
		assert.False(t, ok, "unexpected correction event for %s", s)
	}
}

func TestLockingStatuses(t *testing.T) {
	assert.Equal(t, StatusAuthorisationReady, OperationAuthorisation.LockingStatus())
	assert.Equal(t, StatusCaptureReady, OperationCapture.LockingStatus())
	assert.Equal(t, StatusSystemCancelReady, OperationCancellation.LockingStatus())
}

func TestLegalPreOperationStatuses_CoveredByGraph(t *testing.T) {
	// Every legal pre-operation status must have an edge into the locking
	// status, or LockForProcessing could never succeed from it.
	for _, op := range []OperationType{OperationAuthorisation, OperationCapture, OperationCancellation} {
		lock := op.LockingStatus()
		for _, pre := range op.LegalPreOperationStatuses() {
			assert.True(t, IsLegal(pre, lock), "%s: no edge %s -> %s", op, pre, lock)
		}
	}
}
