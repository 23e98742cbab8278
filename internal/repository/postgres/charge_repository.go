package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pabraksas/pay-connector/internal/domain/charge"
	domainErrors "github.com/pabraksas/pay-connector/internal/domain/errors"
)

// ChargeRepository implements charge.Repository using PostgreSQL.
type ChargeRepository struct {
	pool *pgxpool.Pool
}

// NewChargeRepository creates a new ChargeRepository.
func NewChargeRepository(pool *pgxpool.Pool) *ChargeRepository {
	return &ChargeRepository{pool: pool}
}

func (r *ChargeRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const chargeColumns = `id, external_id, amount, status, gateway_account_id, gateway_name,
	        gateway_transaction_id, delayed_capture, origin,
	        telephone_processor_id, telephone_provider_id, telephone_auth_code, telephone_payment_outcome,
	        parity_check_status, parity_check_date, created_date`

// Create inserts a new charge.
func (r *ChargeRepository) Create(ctx context.Context, c *charge.Charge) error {
	var (
		processorID, providerID, authCode, outcome *string
	)
	if c.Telephone != nil {
		processorID = &c.Telephone.ProcessorID
		providerID = &c.Telephone.ProviderID
		authCode = &c.Telephone.AuthCode
		outcome = &c.Telephone.PaymentOutcome
	}

	err := r.db(ctx).QueryRow(ctx,
		`INSERT INTO charges
		 (external_id, amount, status, gateway_account_id, gateway_name,
		  gateway_transaction_id, delayed_capture, origin,
		  telephone_processor_id, telephone_provider_id, telephone_auth_code, telephone_payment_outcome,
		  parity_check_status, parity_check_date, created_date)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		 RETURNING id`,
		c.ExternalID, c.Amount, string(c.Status), c.GatewayAccountID, c.GatewayName,
		c.GatewayTransactionID, c.DelayedCapture, string(c.Origin),
		processorID, providerID, authCode, outcome,
		string(c.ParityCheckStatus), c.ParityCheckDate, c.CreatedDate,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert charge: %w", err)
	}
	return nil
}

// GetByExternalID retrieves a charge by its external id.
func (r *ChargeRepository) GetByExternalID(ctx context.Context, externalID string) (*charge.Charge, error) {
	return r.scanCharge(r.db(ctx).QueryRow(ctx,
		`SELECT `+chargeColumns+` FROM charges WHERE external_id = $1`, externalID))
}

// UpdateStatus is the compare-and-set write underpinning the locking-status
// protocol. Zero rows affected means the stored status was not expectedFrom,
// which surfaces as ErrOptimisticLockFailed.
func (r *ChargeRepository) UpdateStatus(ctx context.Context, externalID string, expectedFrom, to charge.Status) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE charges SET status = $1 WHERE external_id = $2 AND status = $3`,
		string(to), externalID, string(expectedFrom),
	)
	if err != nil {
		return fmt.Errorf("update charge status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a lost race from an unknown charge.
		var exists bool
		if err := r.db(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM charges WHERE external_id = $1)`, externalID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check charge exists: %w", err)
		}
		if !exists {
			return domainErrors.ErrChargeNotFound
		}
		return domainErrors.ErrOptimisticLockFailed
	}
	return nil
}

// SetStatus writes the status unconditionally. Only the forced-transition
// path uses it.
func (r *ChargeRepository) SetStatus(ctx context.Context, externalID string, to charge.Status) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE charges SET status = $1 WHERE external_id = $2`,
		string(to), externalID,
	)
	if err != nil {
		return fmt.Errorf("set charge status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrChargeNotFound
	}
	return nil
}

// SetGatewayTransactionID records the gateway's transaction reference.
func (r *ChargeRepository) SetGatewayTransactionID(ctx context.Context, externalID, gatewayTransactionID string) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE charges SET gateway_transaction_id = $1 WHERE external_id = $2`,
		gatewayTransactionID, externalID,
	)
	if err != nil {
		return fmt.Errorf("set gateway transaction id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrChargeNotFound
	}
	return nil
}

// UpdateParityCheck records the outcome of a parity check.
func (r *ChargeRepository) UpdateParityCheck(ctx context.Context, externalID string, status charge.ParityCheckStatus, checkedAt time.Time) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE charges SET parity_check_status = $1, parity_check_date = $2 WHERE external_id = $3`,
		string(status), checkedAt, externalID,
	)
	if err != nil {
		return fmt.Errorf("update parity check: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrChargeNotFound
	}
	return nil
}

// InsertStatusEvent appends one ledger entry and returns it with its
// database id filled in.
func (r *ChargeRepository) InsertStatusEvent(ctx context.Context, event *charge.StatusEvent) (*charge.StatusEvent, error) {
	err := r.db(ctx).QueryRow(ctx,
		`INSERT INTO charge_events (charge_external_id, status, event_date)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		event.ChargeExternalID, string(event.Status), event.EventDate,
	).Scan(&event.ID)
	if err != nil {
		return nil, fmt.Errorf("insert charge event: %w", err)
	}
	return event, nil
}

// GetStatusEvents returns a charge's ledger entries in insertion order.
func (r *ChargeRepository) GetStatusEvents(ctx context.Context, externalID string) ([]*charge.StatusEvent, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, charge_external_id, status, event_date
		 FROM charge_events WHERE charge_external_id = $1 ORDER BY id ASC`, externalID,
	)
	if err != nil {
		return nil, fmt.Errorf("list charge events: %w", err)
	}
	defer rows.Close()

	var events []*charge.StatusEvent
	for rows.Next() {
		e := &charge.StatusEvent{}
		var status string
		if err := rows.Scan(&e.ID, &e.ChargeExternalID, &status, &e.EventDate); err != nil {
			return nil, fmt.Errorf("scan charge event: %w", err)
		}
		e.Status = charge.Status(status)
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountStatusEvents counts ledger entries holding the given status. The
// capture retry budget is derived from this count, never from a mutable
// counter column.
func (r *ChargeRepository) CountStatusEvents(ctx context.Context, externalID string, status charge.Status) (int, error) {
	var count int
	err := r.db(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM charge_events WHERE charge_external_id = $1 AND status = $2`,
		externalID, string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count charge events: %w", err)
	}
	return count, nil
}

// --- scanning helpers ---

func (r *ChargeRepository) scanCharge(s scanner) (*charge.Charge, error) {
	c := &charge.Charge{}
	var (
		status, origin, parityStatus               string
		processorID, providerID, authCode, outcome *string
	)
	err := s.Scan(
		&c.ID, &c.ExternalID, &c.Amount, &status, &c.GatewayAccountID, &c.GatewayName,
		&c.GatewayTransactionID, &c.DelayedCapture, &origin,
		&processorID, &providerID, &authCode, &outcome,
		&parityStatus, &c.ParityCheckDate, &c.CreatedDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrChargeNotFound
		}
		return nil, fmt.Errorf("scan charge: %w", err)
	}

	c.Status = charge.Status(status)
	c.Origin = charge.Origin(origin)
	c.ParityCheckStatus = charge.ParityCheckStatus(parityStatus)
	if processorID != nil {
		c.Telephone = &charge.TelephoneDetails{
			ProcessorID:    *processorID,
			ProviderID:     deref(providerID),
			AuthCode:       deref(authCode),
			PaymentOutcome: deref(outcome),
		}
	}
	return c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
