package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pipeline_backend/internal/pipeline/ports"
	"pipeline_backend/platform/config"

	"github.com/google/uuid"
)

// HTTPCreditLedger is the production CreditLedger: an HTTP client for the
// external credit ledger service. The client carries its own timeout so a
// slow ledger never bleeds into the transition path it is called from.
type HTTPCreditLedger struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPCreditLedger(cfg config.LedgerConfig) *HTTPCreditLedger {
	timeout := cfg.GetLedgerTimeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPCreditLedger{
		baseURL:    strings.TrimRight(cfg.GetLedgerURL(), "/"),
		apiKey:     cfg.GetLedgerAPIKey(),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type debitRequest struct {
	TenantID    string `json:"tenantId"`
	AmountCents int64  `json:"amountCents"`
	Reference   string `json:"reference"`
}

type debitResponse struct {
	Success         bool   `json:"success"`
	NewBalanceCents int64  `json:"newBalanceCents"`
	Message         string `json:"message"`
}

// Debit charges the tenant's credit balance. Non-2xx responses (insufficient
// balance included) are returned as errors; the caller downgrades them to a
// charge_failed warning.
func (c *HTTPCreditLedger) Debit(ctx context.Context, tenantID uuid.UUID, amountCents int64, reference string) (ports.DebitResult, error) {
	if c.baseURL == "" {
		return ports.DebitResult{}, fmt.Errorf("ledger url not configured")
	}

	bodyBytes, err := json.Marshal(debitRequest{
		TenantID:    tenantID.String(),
		AmountCents: amountCents,
		Reference:   reference,
	})
	if err != nil {
		return ports.DebitResult{}, fmt.Errorf("failed to marshal debit request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/debits", bytes.NewReader(bodyBytes))
	if err != nil {
		return ports.DebitResult{}, fmt.Errorf("failed to create debit request: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return ports.DebitResult{}, fmt.Errorf("debit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return ports.DebitResult{}, fmt.Errorf("ledger returned %d: %s", resp.StatusCode, string(body))
	}

	var result debitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ports.DebitResult{}, fmt.Errorf("failed to decode debit response: %w", err)
	}
	if !result.Success {
		return ports.DebitResult{}, fmt.Errorf("debit rejected: %s", result.Message)
	}

	return ports.DebitResult{NewBalanceCents: result.NewBalanceCents}, nil
}
