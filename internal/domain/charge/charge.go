package charge

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
	"time"

	"github.com/pabraksas/pay-connector/internal/domain/errors"
)

// Charge represents one payment attempt. Amount is in minor currency units.
type Charge struct {
	ID                   int64
	ExternalID           string
	Amount               int64
	Status               Status
	GatewayAccountID     int64
	GatewayName          string
	GatewayTransactionID *string
	DelayedCapture       bool
	Origin               Origin
	Telephone            *TelephoneDetails
	ParityCheckStatus    ParityCheckStatus
	ParityCheckDate      *time.Time
	CreatedDate          time.Time
}

// TelephoneDetails is the attribute group carried only by telephone-origin
// charges.
type TelephoneDetails struct {
	ProcessorID    string
	ProviderID     string
	AuthCode       string
	PaymentOutcome string
}

// New creates a web-origin charge in the pre-graph UNDEFINED status. The
// first ledger entry is written when the state machine transitions it to
// CREATED.
func New(amount int64, gatewayAccountID int64, gatewayName string, delayedCapture bool) (*Charge, error) {
	if amount <= 0 {
		return nil, errors.ErrInvalidInput
	}
	return &Charge{
		ExternalID:        NewExternalID(),
		Amount:            amount,
		Status:            StatusUndefined,
		GatewayAccountID:  gatewayAccountID,
		GatewayName:       gatewayName,
		DelayedCapture:    delayedCapture,
		Origin:            OriginWeb,
		ParityCheckStatus: ParityUnchecked,
		CreatedDate:       time.Now().UTC(),
	}, nil
}

// NewTelephone creates a telephone-origin charge carrying the details
// reported by the telephone payment notification.
func NewTelephone(amount int64, gatewayAccountID int64, gatewayName string, details TelephoneDetails) (*Charge, error) {
	c, err := New(amount, gatewayAccountID, gatewayName, false)
	if err != nil {
		return nil, err
	}
	c.Origin = OriginTelephone
	c.Telephone = &details
	return c, nil
}

// SetStatus moves the charge along a graph edge, or fails with an
// InvalidStateTransitionError leaving the charge untouched.
func (c *Charge) SetStatus(target Status) error {
	if !IsLegal(c.Status, target) {
		return errors.NewInvalidStateTransitionError(string(c.Status), string(target))
	}
	c.Status = target
	return nil
}

// SetStatusUnchecked bypasses the graph. Only the forced-transition path may
// use it; every call must be paired with a correction event.
func (c *Charge) SetStatusUnchecked(target Status) {
	c.Status = target
}

// HasStatus reports whether the charge currently holds any of the given
// statuses.
func (c *Charge) HasStatus(statuses ...Status) bool {
	for _, s := range statuses {
		if c.Status == s {
			return true
		}
	}
	return false
}

// InTerminalState reports whether the charge can make no further organic
// progress.
func (c *Charge) InTerminalState() bool {
	return IsTerminal(c.Status)
}

// SetGatewayTransactionID records the gateway's transaction reference.
func (c *Charge) SetGatewayTransactionID(txID string) {
	if txID == "" {
		return
	}
	c.GatewayTransactionID = &txID
}

// NewExternalID returns a 26-character opaque identifier safe for URLs.
func NewExternalID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err) // crypto/rand is assumed available
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return strings.ToLower(enc.EncodeToString(buf[:]))
}
