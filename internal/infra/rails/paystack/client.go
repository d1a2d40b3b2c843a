// Package paystack is the hosted-checkout rail: initiation returns a page
// to redirect the guest to, and confirmation verifies the transaction by
// reference after the redirect callback.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stayvibe/internal/app/policies"
)

type Config struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
	// Email resolves the guest contact the provider requires per session.
	Email func() string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

var _ policies.Rail = (*Client)(nil)

func New(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type initializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type verifyResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Status          string `json:"status"`
		GatewayResponse string `json:"gateway_response"`
	} `json:"data"`
}

// Initiate opens a checkout session. The booking id doubles as the provider
// reference so verification needs no extra mapping.
func (c *Client) Initiate(ctx context.Context, charge policies.Charge) (policies.Initiation, error) {
	email := "guest@stayvibe.app"
	if c.cfg.Email != nil {
		if e := c.cfg.Email(); e != "" {
			email = e
		}
	}
	req := initializeRequest{
		Email:       email,
		Amount:      charge.Amount.Amount,
		Currency:    charge.Amount.Currency,
		Reference:   string(charge.BookingID),
		CallbackURL: c.cfg.CallbackURL,
	}
	var resp initializeResponse
	if err := c.call(ctx, http.MethodPost, "/transaction/initialize", req, &resp); err != nil {
		return policies.Initiation{}, fmt.Errorf("paystack: initialize: %w", err)
	}
	if !resp.Status {
		return policies.Initiation{}, fmt.Errorf("paystack: initialize rejected: %s", resp.Message)
	}
	return policies.Initiation{
		Mode:        policies.ModeRedirect,
		Ref:         resp.Data.Reference,
		RedirectURL: resp.Data.AuthorizationURL,
	}, nil
}

// Confirm verifies a transaction by reference. "abandoned" means the guest
// left the page without paying: still pending, not a decline.
func (c *Client) Confirm(ctx context.Context, ref string) (policies.ConfirmStatus, error) {
	var resp verifyResponse
	if err := c.call(ctx, http.MethodGet, "/transaction/verify/"+ref, nil, &resp); err != nil {
		return policies.ConfirmPending, err
	}
	switch resp.Data.Status {
	case "success":
		return policies.ConfirmPaid, nil
	case "failed":
		return policies.ConfirmFailed, fmt.Errorf("%w: %s", policies.ErrDeclined, resp.Data.GatewayResponse)
	default: // "pending", "abandoned", "ongoing"
		return policies.ConfirmPending, nil
	}
}

func (c *Client) call(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
