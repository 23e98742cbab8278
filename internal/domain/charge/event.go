package charge

import "time"

// StatusEvent is one entry in a charge's append-only status ledger. Entries
// are never updated; insertion order is the ordering guarantee.
type StatusEvent struct {
	ID               int64
	ChargeExternalID string
	Status           Status
	// EventDate is the gateway-supplied time when one was given, otherwise
	// the wall-clock time of the transition.
	EventDate time.Time
}

// StateTransition is the ephemeral value handed to the event outbox after a
// transition has been committed. EventTypeOverride is set only by forced
// transitions.
type StateTransition struct {
	ChargeExternalID  string
	From              Status
	To                Status
	StatusEventID     int64
	EventDate         time.Time
	EventTypeOverride string
}
