package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/davidumoru/shopcore/internal/core/domain"
	"github.com/davidumoru/shopcore/internal/port"
)

const DefaultVerifyTimeout = 30 * time.Second

// GatewayClient queries the payment gateway's verification endpoint.
type GatewayClient struct {
	baseURL   string
	secretKey string
	timeout   time.Duration
	client    *http.Client
}

func NewGatewayClient(baseURL, secretKey string, timeout time.Duration) *GatewayClient {
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	return &GatewayClient{
		baseURL:   baseURL,
		secretKey: secretKey,
		timeout:   timeout,
		client:    &http.Client{},
	}
}

type verifyEnvelope struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	Data    verifyData `json:"data"`
}

type verifyData struct {
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Email     string          `json:"email"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	UpdatedAt string          `json:"updated_at"`
	CreatedAt string          `json:"created_at"`
}

// Verify issues the bearer-authenticated status query for txRef. The
// call is bounded by the configured deadline; hitting it yields
// port.ErrVerificationTimeout. Every other rejection (transport error,
// non-2xx status, malformed body, non-success envelope) is a
// *port.VerificationFailedError with the reason.
func (g *GatewayClient) Verify(ctx context.Context, txRef string) (*domain.Verification, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/transactions/verify?tx_ref=%s", g.baseURL, url.QueryEscape(txRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &port.VerificationFailedError{Reason: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, port.ErrVerificationTimeout
		}
		return nil, &port.VerificationFailedError{Reason: fmt.Sprintf("gateway request: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &port.VerificationFailedError{Reason: fmt.Sprintf("gateway returned HTTP %d", resp.StatusCode)}
	}

	var env verifyEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, port.ErrVerificationTimeout
		}
		return nil, &port.VerificationFailedError{Reason: fmt.Sprintf("malformed gateway response: %v", err)}
	}

	if env.Status != "success" {
		reason := env.Message
		if reason == "" {
			reason = fmt.Sprintf("gateway status %q", env.Status)
		}
		return nil, &port.VerificationFailedError{Reason: reason}
	}
	if env.Data.Status != "successful" {
		return nil, &port.VerificationFailedError{Reason: fmt.Sprintf("payment status %q", env.Data.Status)}
	}

	return &domain.Verification{
		State:     domain.VerificationSuccess,
		TxRef:     txRef,
		Amount:    env.Data.Amount,
		Currency:  env.Data.Currency,
		Email:     env.Data.Email,
		FirstName: env.Data.FirstName,
		LastName:  env.Data.LastName,
		PaidAt:    parsePaidAt(env.Data),
	}, nil
}

// parsePaidAt prefers updated_at, falling back to created_at; some
// gateway responses carry only one of the two.
func parsePaidAt(d verifyData) time.Time {
	for _, raw := range []string{d.UpdatedAt, d.CreatedAt} {
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
