package service

import (
	"context"

	"github.com/pabraksas/pay-connector/internal/domain/charge"
)

// CreateChargeRequest holds the input for creating a web charge.
type CreateChargeRequest struct {
	Amount           int64
	GatewayAccountID int64
	GatewayName      string
	DelayedCapture   bool
}

// CreateTelephoneChargeRequest holds the input for recording a payment taken
// over the telephone, reported after the fact by the gateway.
type CreateTelephoneChargeRequest struct {
	Amount           int64
	GatewayAccountID int64
	GatewayName      string
	ProcessorID      string
	ProviderID       string
	AuthCode         string
	// Outcome is the authorisation status reported by the gateway.
	Outcome charge.Status
}

// CreateCharge persists a new charge and transitions it into CREATED, which
// writes the first ledger entry and emits payment.created.
func (s *ChargeService) CreateCharge(ctx context.Context, req CreateChargeRequest) (*charge.Charge, error) {
	c, err := charge.New(req.Amount, req.GatewayAccountID, req.GatewayName, req.DelayedCapture)
	if err != nil {
		return nil, err
	}
	if err := s.chargeRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return s.Transition(ctx, c, charge.StatusCreated)
}

// CreateTelephoneCharge persists a telephone-origin charge and walks it
// through PAYMENT NOTIFICATION CREATED into the reported outcome status.
func (s *ChargeService) CreateTelephoneCharge(ctx context.Context, req CreateTelephoneChargeRequest) (*charge.Charge, error) {
	c, err := charge.NewTelephone(req.Amount, req.GatewayAccountID, req.GatewayName, charge.TelephoneDetails{
		ProcessorID:    req.ProcessorID,
		ProviderID:     req.ProviderID,
		AuthCode:       req.AuthCode,
		PaymentOutcome: string(req.Outcome),
	})
	if err != nil {
		return nil, err
	}
	if err := s.chargeRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	if _, err := s.Transition(ctx, c, charge.StatusPaymentNotificationCreated); err != nil {
		return nil, err
	}
	return s.Transition(ctx, c, req.Outcome)
}
