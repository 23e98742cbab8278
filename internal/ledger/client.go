package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	domainErrors "github.com/pabraksas/pay-connector/internal/domain/errors"
	"github.com/pabraksas/pay-connector/pkg/retry"
	"github.com/rs/zerolog"
)

// Transaction is the ledger service's read-only view of a settled payment.
type Transaction struct {
	TransactionID        string     `json:"transaction_id"`
	State                string     `json:"state"`
	AmountMinorUnits     int64      `json:"amount"`
	GatewayAccountID     int64      `json:"gateway_account_id"`
	GatewayTransactionID string     `json:"gateway_transaction_id"`
	CapturedDate         *time.Time `json:"captured_date"`
}

// Ledger transaction states relevant to parity checking.
const (
	StateSuccess   = "success"
	StateDeclined  = "declined"
	StateError     = "error"
	StateCancelled = "cancelled"
)

// Client is a read-only HTTP client for the external ledger-of-record.
// Transient failures are retried with backoff; a 404 maps to
// ErrLedgerTransactionNotFound.
type Client struct {
	baseURL  string
	http     *http.Client
	retryCfg retry.Config
	logger   zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: timeout},
		retryCfg: retry.Config{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second, Multiplier: 2.0},
		logger:   logger,
	}
}

// GetTransaction fetches the ledger transaction for a charge external id.
func (c *Client) GetTransaction(ctx context.Context, chargeExternalID string) (*Transaction, error) {
	url := fmt.Sprintf("%s/v1/transaction/%s", c.baseURL, chargeExternalID)

	return retry.DoWithResult(ctx, c.retryCfg, func() (*Transaction, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("ledger request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, retry.Unrecoverable(domainErrors.ErrLedgerTransactionNotFound)
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("ledger returned status %d", resp.StatusCode)
		}

		var tx Transaction
		if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
			return nil, retry.Unrecoverable(fmt.Errorf("decode ledger transaction: %w", err))
		}
		return &tx, nil
	})
}
