// Package mpesa is the push-payment rail: initiation fires an STK prompt at
// the guest's phone and confirmation is polled until the guest acts on it.
package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"stayvibe/internal/app/policies"
)

type Config struct {
	BaseURL   string
	Shortcode string
	Passkey   string
}

type Client struct {
	cfg        Config
	httpClient *http.Client

	mu      sync.RWMutex
	results map[string]policies.ConfirmStatus // callback-reported, keyed by checkout request id
}

var _ policies.Rail = (*Client)(nil)

func New(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		results:    make(map[string]policies.ConfirmStatus),
	}
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PhoneNumber       string `json:"PhoneNumber"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
}

type stkQueryResponse struct {
	ResultCode string `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// Initiate sends the STK push and hands back the checkout request id for
// polling. Sending the prompt proves nothing about payment.
func (c *Client) Initiate(ctx context.Context, charge policies.Charge) (policies.Initiation, error) {
	phone, err := NormalizePhone(charge.Phone)
	if err != nil {
		return policies.Initiation{}, err
	}
	req := stkPushRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Amount:            charge.Amount.Amount,
		PartyA:            phone,
		PhoneNumber:       phone,
		AccountReference:  string(charge.BookingID),
		TransactionDesc:   "stay deposit",
	}
	var resp stkPushResponse
	if err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", req, &resp); err != nil {
		return policies.Initiation{}, fmt.Errorf("mpesa: stk push: %w", err)
	}
	if resp.ResponseCode != "0" {
		return policies.Initiation{}, fmt.Errorf("mpesa: push rejected: %s", resp.ResponseDescription)
	}
	return policies.Initiation{Mode: policies.ModePoll, Ref: resp.CheckoutRequestID}, nil
}

// Confirm reports the prompt's fate: the provider callback wins if one
// arrived, otherwise the status query API is asked.
func (c *Client) Confirm(ctx context.Context, ref string) (policies.ConfirmStatus, error) {
	c.mu.RLock()
	status, ok := c.results[ref]
	c.mu.RUnlock()
	if ok {
		if status == policies.ConfirmFailed {
			return status, policies.ErrDeclined
		}
		return status, nil
	}

	var resp stkQueryResponse
	err := c.post(ctx, "/mpesa/stkpushquery/v1/query", map[string]string{
		"BusinessShortCode": c.cfg.Shortcode,
		"CheckoutRequestID": ref,
	}, &resp)
	if err != nil {
		return policies.ConfirmPending, err
	}
	switch resp.ResultCode {
	case "0":
		return policies.ConfirmPaid, nil
	case "1032", "1": // cancelled by user / insufficient funds
		return policies.ConfirmFailed, fmt.Errorf("%w: %s", policies.ErrDeclined, resp.ResultDesc)
	default:
		return policies.ConfirmPending, nil
	}
}

// RecordCallback stores a provider webhook result so the next Confirm poll
// resolves without another upstream query.
func (c *Client) RecordCallback(ref string, resultCode int) {
	status := policies.ConfirmFailed
	if resultCode == 0 {
		status = policies.ConfirmPaid
	}
	c.mu.Lock()
	c.results[ref] = status
	c.mu.Unlock()
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

// NormalizePhone canonicalizes Kenyan numbers to 2547XXXXXXXX: local 07/01
// prefixes and a leading + are both accepted.
func NormalizePhone(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	p = strings.ReplaceAll(p, " ", "")
	p = strings.TrimPrefix(p, "+")
	if strings.HasPrefix(p, "0") && len(p) == 10 {
		p = "254" + p[1:]
	}
	if !strings.HasPrefix(p, "254") || len(p) != 12 {
		return "", fmt.Errorf("mpesa: invalid phone number %q", raw)
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("mpesa: invalid phone number %q", raw)
		}
	}
	return p, nil
}
