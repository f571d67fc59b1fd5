// Package ctl is the HTTP client used by the uvctl command to talk to
// the back-office API.
package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"usdtvault/internal/ledger"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Register(ctx context.Context, email, walletAddress, referralCode string) (ledger.Account, error) {
	var out ledger.Account
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/accounts", map[string]any{
		"email":          email,
		"wallet_address": walletAddress,
		"referral_code":  referralCode,
	}, &out)
	return out, err
}

func (c *Client) Packages(ctx context.Context) ([]ledger.Package, error) {
	var out struct {
		Packages []ledger.Package `json:"packages"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/packages", nil, &out)
	return out.Packages, err
}

func (c *Client) Balances(ctx context.Context, accountID int64) (ledger.Balances, error) {
	var out ledger.Balances
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/accounts/%d/balances", accountID), nil, &out)
	return out, err
}

func (c *Client) Stats(ctx context.Context, accountID int64) (ledger.AccountStats, error) {
	var out ledger.AccountStats
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/accounts/%d/stats", accountID), nil, &out)
	return out, err
}

func (c *Client) Invest(ctx context.Context, accountID int64, packageID int, amountUSDT float64, walletAddress, externalTxRef string) (ledger.CreateInvestmentResult, error) {
	var out ledger.CreateInvestmentResult
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/accounts/%d/invest", accountID), map[string]any{
		"package_id":      packageID,
		"amount_usdt":     amountUSDT,
		"wallet_address":  walletAddress,
		"external_tx_ref": externalTxRef,
	}, &out)
	return out, err
}

func (c *Client) Withdraw(ctx context.Context, accountID int64, source string, amountUSDT float64, walletAddress string) (ledger.WithdrawalResult, error) {
	var out ledger.WithdrawalResult
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/accounts/%d/withdrawals", accountID), map[string]any{
		"source":         source,
		"amount_usdt":    amountUSDT,
		"wallet_address": walletAddress,
	}, &out)
	return out, err
}

func (c *Client) Investments(ctx context.Context, accountID int64) ([]ledger.Investment, error) {
	var out struct {
		Investments []ledger.Investment `json:"investments"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/accounts/%d/investments", accountID), nil, &out)
	return out.Investments, err
}

func (c *Client) History(ctx context.Context, accountID int64, txType, status string, limit int) ([]ledger.Transaction, error) {
	q := url.Values{}
	if txType != "" {
		q.Set("type", txType)
	}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	path := fmt.Sprintf("/v1/accounts/%d/transactions", accountID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Transactions []ledger.Transaction `json:"transactions"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out.Transactions, err
}

func (c *Client) SetAccountStatus(ctx context.Context, accountID int64, status string) error {
	return c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/accounts/%d/status", accountID), map[string]any{
		"status": status,
	}, nil)
}

func (c *Client) PendingWithdrawals(ctx context.Context) ([]ledger.Transaction, error) {
	var out struct {
		Withdrawals []ledger.Transaction `json:"withdrawals"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/withdrawals/pending", nil, &out)
	return out.Withdrawals, err
}

func (c *Client) RejectWithdrawal(ctx context.Context, txID int64, reason string) error {
	return c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/withdrawals/%d/reject", txID), map[string]any{
		"reason": reason,
	}, nil)
}

func (c *Client) Reconcile(ctx context.Context) (bool, []ledger.ReconciliationRow, error) {
	var out struct {
		Balanced bool                      `json:"balanced"`
		Drift    []ledger.ReconciliationRow `json:"drift"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/reconcile", nil, &out)
	return out.Balanced, out.Drift, err
}

func (c *Client) RunAccrual(ctx context.Context) (ledger.AccrualReport, error) {
	var out ledger.AccrualReport
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/accrual/run", nil, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
