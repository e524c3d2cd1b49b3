package stripegate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrGateway marks any failure talking to the card gateway: network errors,
// timeouts and non-2xx responses. Callers treat it as retryable.
var ErrGateway = errors.New("card gateway error")

// Config holds card gateway configuration
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Client is the HTTP client for the Stripe-compatible card gateway.
type Client struct {
	httpClient *http.Client
	config     Config
}

// CreateChargeRequest represents charge creation request
type CreateChargeRequest struct {
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"`
	CustomerRef string            `json:"customer_ref"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CreateChargeResponse represents charge creation response
type CreateChargeResponse struct {
	ChargeID     string `json:"charge_id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// ConfirmChargeResponse represents charge confirmation response
type ConfirmChargeResponse struct {
	ChargeID string `json:"charge_id"`
	Status   string `json:"status"`
}

// NewClient creates a new card gateway client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// CreateCharge creates a charge and returns a client-completable reference.
func (c *Client) CreateCharge(ctx context.Context, req CreateChargeRequest) (*CreateChargeResponse, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(req.CustomerRef) == "" {
		return nil, fmt.Errorf("validation error: customer_ref must be non-empty")
	}

	var out CreateChargeResponse
	if err := c.post(ctx, "/v1/charges", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmCharge confirms a previously created charge.
func (c *Client) ConfirmCharge(ctx context.Context, chargeID string) (*ConfirmChargeResponse, error) {
	if strings.TrimSpace(chargeID) == "" {
		return nil, fmt.Errorf("validation error: charge_id must be non-empty")
	}

	var out ConfirmChargeResponse
	if err := c.post(ctx, "/v1/charges/"+chargeID+"/confirm", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("gateway client is not initialized")
	}
	if strings.TrimSpace(c.config.BaseURL) == "" {
		return fmt.Errorf("gateway config error: base_url is empty")
	}
	if strings.TrimSpace(c.config.SecretKey) == "" {
		return fmt.Errorf("gateway config error: secret_key is empty")
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode gateway request: %w", err)
	}

	base := strings.TrimRight(c.config.BaseURL, "/")
	url := base + path

	timeout := c.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.SecretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", ErrGateway, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", ErrGateway, err)
	}

	return nil
}
