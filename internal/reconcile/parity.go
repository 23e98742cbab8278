package reconcile

import (
	"context"
	"errors"

	"github.com/pabraksas/pay-connector/internal/domain/charge"
	domainErrors "github.com/pabraksas/pay-connector/internal/domain/errors"
	"github.com/pabraksas/pay-connector/internal/ledger"
	"github.com/pabraksas/pay-connector/internal/service"
	"github.com/rs/zerolog"
)

// LedgerReader is the slice of the ledger client the parity checker needs.
type LedgerReader interface {
	GetTransaction(ctx context.Context, chargeExternalID string) (*ledger.Transaction, error)
}

// ledgerStateForStatus maps terminal local statuses to the ledger state
// they should reconcile against.
var ledgerStateForStatus = map[charge.Status]string{
	charge.StatusCaptured:              ledger.StateSuccess,
	charge.StatusCaptureError:          ledger.StateError,
	charge.StatusAuthorisationRejected: ledger.StateDeclined,
	charge.StatusAuthorisationError:    ledger.StateError,
	charge.StatusExpired:               ledger.StateCancelled,
	charge.StatusSystemCancelled:       ledger.StateCancelled,
	charge.StatusUserCancelled:         ledger.StateCancelled,
}

// ParityChecker compares local charge state against the ledger-of-record
// and corrects stale local state with forced transitions. It is a caller of
// the state machine, not part of it.
type ParityChecker struct {
	charges *service.ChargeService
	ledger  LedgerReader
	logger  zerolog.Logger
}

func NewParityChecker(charges *service.ChargeService, ledgerClient LedgerReader, logger zerolog.Logger) *ParityChecker {
	return &ParityChecker{charges: charges, ledger: ledgerClient, logger: logger}
}

// Check reconciles one charge. Charges still in flight are skipped; a
// captured-in-ledger charge that never reached CAPTURED locally is forced
// there with a correction event.
func (p *ParityChecker) Check(ctx context.Context, chargeExternalID string) (charge.ParityCheckStatus, error) {
	c, err := p.charges.FindByExternalID(ctx, chargeExternalID)
	if err != nil {
		return "", err
	}

	if !c.InTerminalState() {
		if err := p.charges.UpdateParityStatus(ctx, c, charge.ParitySkipped); err != nil {
			return "", err
		}
		return charge.ParitySkipped, nil
	}

	tx, err := p.ledger.GetTransaction(ctx, chargeExternalID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrLedgerTransactionNotFound) {
			p.logger.Warn().
				Str("charge_external_id", chargeExternalID).
				Msg("Terminal charge missing from ledger")
			if err := p.charges.UpdateParityStatus(ctx, c, charge.ParityDataMismatch); err != nil {
				return "", err
			}
			return charge.ParityDataMismatch, nil
		}
		return "", err
	}

	if ledgerStateForStatus[c.Status] == tx.State && c.Amount == tx.AmountMinorUnits {
		if err := p.charges.UpdateParityStatus(ctx, c, charge.ParityDataMatches); err != nil {
			return "", err
		}
		return charge.ParityDataMatches, nil
	}

	p.logger.Warn().
		Str("charge_external_id", chargeExternalID).
		Str("charge_status", string(c.Status)).
		Str("ledger_state", tx.State).
		Msg("Charge state disagrees with ledger")

	// The ledger saw the money move; local state is the stale side.
	if tx.State == ledger.StateSuccess && !c.HasStatus(charge.StatusCaptured) {
		if _, err := p.charges.ForceTransition(ctx, c, charge.StatusCaptured); err != nil {
			return "", err
		}
	}
	if err := p.charges.UpdateParityStatus(ctx, c, charge.ParityDataMismatch); err != nil {
		return "", err
	}
	return charge.ParityDataMismatch, nil
}
