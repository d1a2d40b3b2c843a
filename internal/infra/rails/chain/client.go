// Package chain is the on-chain rail: payment is a token transfer into the
// booking contract, recorded on an immutable per-booking ledger. There is
// no provider session to poll; the transfer either lands with enough
// confirmations or it does not.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"stayvibe/internal/app/policies"
	"stayvibe/internal/domain/booking"
	"stayvibe/internal/domain/shared/money"
)

// ErrNoWallet means the session has no usable connected wallet; the guest
// must (re)connect before an on-chain payment can start.
var ErrNoWallet = errors.New("chain: no connected wallet")

type Config struct {
	RPCURL        string
	ContractAddr  string
	Confirmations int
}

// Client talks JSON-RPC to the relayer fronting the booking contract.
type Client struct {
	cfg        Config
	httpClient *http.Client
	nextID     atomic.Int64
}

var (
	_ policies.Rail         = (*Client)(nil)
	_ policies.LedgerReader = (*Client)(nil)
)

func New(cfg Config) *Client {
	if cfg.Confirmations <= 0 {
		cfg.Confirmations = 2
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type transferParams struct {
	Contract      string `json:"contract"`
	From          string `json:"from"`
	BookingID     string `json:"bookingId"`
	TokenAmount   string `json:"tokenAmount"`
	Confirmations int    `json:"confirmations"`
}

type transferResult struct {
	TxHash        string `json:"txHash"`
	Confirmations int    `json:"confirmations"`
	Reverted      bool   `json:"reverted"`
	Reason        string `json:"reason"`
}

type rateResult struct {
	// Token units per one currency unit, fixed-point with 6 decimals.
	RateMicro int64  `json:"rateMicro"`
	Currency  string `json:"currency"`
}

type ledgerResult struct {
	Exists         bool   `json:"exists"`
	DepositPaid    bool   `json:"depositPaid"`
	BalancePaid    bool   `json:"balancePaid"`
	DepositAmount  int64  `json:"depositAmount"`
	BalanceAmount  int64  `json:"balanceAmount"`
	DepositAtUnix  int64  `json:"depositAt"`
	BalanceAtUnix  int64  `json:"balanceAt"`
	GuestWallet    string `json:"guestWallet"`
	SettledBalance bool   `json:"settledBalance"`
}

// Initiate converts the fiat amount at the rate quoted now, submits the
// transfer, and blocks until the configured confirmation depth. The rate is
// re-quoted on every call: the second leg of a full payment settles at the
// rate of its own moment, not the first leg's.
func (c *Client) Initiate(ctx context.Context, charge policies.Charge) (policies.Initiation, error) {
	from := charge.Wallet
	if !validAddress(from) {
		return policies.Initiation{}, ErrNoWallet
	}
	tokenAmount, err := c.convert(ctx, charge.Amount)
	if err != nil {
		return policies.Initiation{}, err
	}
	var res transferResult
	err = c.call(ctx, "booking_transfer", transferParams{
		Contract:      c.cfg.ContractAddr,
		From:          from,
		BookingID:     string(charge.BookingID),
		TokenAmount:   tokenAmount,
		Confirmations: c.cfg.Confirmations,
	}, &res)
	if err != nil {
		return policies.Initiation{}, fmt.Errorf("chain: transfer: %w", err)
	}
	if res.Reverted {
		return policies.Initiation{}, fmt.Errorf("%w: %s", policies.ErrDeclined, res.Reason)
	}
	if res.Confirmations < c.cfg.Confirmations {
		return policies.Initiation{}, fmt.Errorf("chain: tx %s stuck at %d confirmations", res.TxHash, res.Confirmations)
	}
	return policies.Initiation{Mode: policies.ModeTx, Ref: res.TxHash, TxHash: res.TxHash}, nil
}

// Confirm re-checks a known transaction hash. Initiate already waited out
// the confirmation depth, so this only matters on resumed flows.
func (c *Client) Confirm(ctx context.Context, ref string) (policies.ConfirmStatus, error) {
	var res transferResult
	if err := c.call(ctx, "booking_txStatus", map[string]string{"txHash": ref}, &res); err != nil {
		return policies.ConfirmPending, err
	}
	if res.Reverted {
		return policies.ConfirmFailed, fmt.Errorf("%w: %s", policies.ErrDeclined, res.Reason)
	}
	if res.Confirmations >= c.cfg.Confirmations {
		return policies.ConfirmPaid, nil
	}
	return policies.ConfirmPending, nil
}

// LedgerEntry reads the contract's per-booking record. This is the
// double-payment guard consulted before any submission.
func (c *Client) LedgerEntry(ctx context.Context, bookingID booking.ID) (policies.LedgerEntry, error) {
	var res ledgerResult
	err := c.call(ctx, "booking_ledger", map[string]string{
		"contract":  c.cfg.ContractAddr,
		"bookingId": string(bookingID),
	}, &res)
	if err != nil {
		return policies.LedgerEntry{}, fmt.Errorf("chain: ledger read: %w", err)
	}
	entry := policies.LedgerEntry{
		Exists:        res.Exists,
		DepositPaid:   res.DepositPaid,
		BalancePaid:   res.BalancePaid,
		DepositAmount: money.Money{Amount: res.DepositAmount, Currency: money.DefaultCurrency},
		BalanceAmount: money.Money{Amount: res.BalanceAmount, Currency: money.DefaultCurrency},
	}
	if res.DepositAtUnix > 0 {
		entry.DepositAt = time.Unix(res.DepositAtUnix, 0).UTC()
	}
	if res.BalanceAtUnix > 0 {
		entry.BalanceAt = time.Unix(res.BalanceAtUnix, 0).UTC()
	}
	return entry, nil
}

// convert quotes the current fiat-to-token rate and applies it. Fixed-point
// arithmetic end to end; the result is a decimal token-unit string.
func (c *Client) convert(ctx context.Context, amount money.Money) (string, error) {
	var rate rateResult
	if err := c.call(ctx, "rate_quote", map[string]string{"currency": amount.Currency}, &rate); err != nil {
		return "", fmt.Errorf("chain: rate quote: %w", err)
	}
	if rate.RateMicro <= 0 {
		return "", fmt.Errorf("chain: non-positive rate for %s", amount.Currency)
	}
	tokenMicro := amount.Amount * rate.RateMicro
	return fmt.Sprintf("%d.%06d", tokenMicro/1_000_000, tokenMicro%1_000_000), nil
}

// validAddress checks the 0x-prefixed 20-byte hex shape. Checksum casing is
// the relayer's problem.
func validAddress(addr string) bool {
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return false
	}
	for _, r := range addr[2:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RPCURL, bytes.NewReader(payload))
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
	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}
