package testutil

import (
	"time"

	"github.com/pabraksas/pay-connector/internal/domain/charge"
)

// NewTestCharge returns a sandbox charge in the given status.
func NewTestCharge(status charge.Status) *charge.Charge {
	return &charge.Charge{
		ExternalID:        charge.NewExternalID(),
		Amount:            2500,
		Status:            status,
		GatewayAccountID:  42,
		GatewayName:       "sandbox",
		Origin:            charge.OriginWeb,
		ParityCheckStatus: charge.ParityUnchecked,
		CreatedDate:       time.Now().UTC(),
	}
}

// NewCapturableCharge returns a charge ready for the capture processor.
func NewCapturableCharge() *charge.Charge {
	c := NewTestCharge(charge.StatusCaptureApproved)
	txID := "gw-" + c.ExternalID
	c.GatewayTransactionID = &txID
	return c
}

// NewTelephoneCharge returns a telephone-origin charge with notification
// details filled in.
func NewTelephoneCharge(status charge.Status) *charge.Charge {
	c := NewTestCharge(status)
	c.Origin = charge.OriginTelephone
	c.Telephone = &charge.TelephoneDetails{
		ProcessorID:    "proc-1",
		ProviderID:     "prov-1",
		AuthCode:       "666",
		PaymentOutcome: "success",
	}
	return c
}
