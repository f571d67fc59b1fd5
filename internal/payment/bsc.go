// Package payment implements the ledger's payment-network collaborator for
// BSC: deposit verification against a node's JSON-RPC API and withdrawal
// broadcast through the platform's signing service.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"usdtvault/internal/ledger"
)

// ErrUnavailable wraps every transport-level failure so the engine can treat
// the payment network as a single fallible collaborator.
var ErrUnavailable = errors.New("payment network unavailable")

// transferTopic is the keccak-256 hash of Transfer(address,address,uint256).
const transferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// tokenDecimals is USDT's decimal count on BSC (BEP-20 USDT uses 18, unlike
// the 6 of the ERC-20 original); micros carry 6.
const tokenDecimals = 18

var weiPerMicro = new(big.Int).Exp(big.NewInt(10), big.NewInt(tokenDecimals-6), nil)

type BSCClient struct {
	nodeURL         string
	payoutURL       string
	contractAddress string
	httpClient      *http.Client
}

func NewBSCClient(nodeURL, payoutURL, contractAddress string, timeout time.Duration) *BSCClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &BSCClient{
		nodeURL:         strings.TrimRight(nodeURL, "/"),
		payoutURL:       strings.TrimRight(payoutURL, "/"),
		contractAddress: strings.ToLower(strings.TrimSpace(contractAddress)),
		httpClient:      &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type receiptLog struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

type txReceipt struct {
	Status string       `json:"status"`
	From   string       `json:"from"`
	To     string       `json:"to"`
	Logs   []receiptLog `json:"logs"`
}

type receiptResponse struct {
	Result *txReceipt `json:"result"`
	Error  *rpcError  `json:"error"`
}

// VerifyIncomingPayment checks a deposit's transaction receipt on chain: the
// transaction must have succeeded, targeted the platform's token contract,
// and carry a Transfer event whose amount is returned in micros. An absent
// receipt means the transfer is not mined yet, which reports unconfirmed
// rather than an error.
func (c *BSCClient) VerifyIncomingPayment(ctx context.Context, txRef string) (ledger.PaymentVerification, error) {
	var out ledger.PaymentVerification

	var resp receiptResponse
	err := c.postJSON(ctx, c.nodeURL, rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_getTransactionReceipt",
		Params:  []any{txRef},
		ID:      1,
	}, &resp)
	if err != nil {
		return out, err
	}
	if resp.Error != nil {
		return out, fmt.Errorf("%w: rpc error %d: %s", ErrUnavailable, resp.Error.Code, resp.Error.Message)
	}
	if resp.Result == nil {
		return out, nil // not mined yet
	}

	receipt := resp.Result
	if receipt.Status != "0x1" {
		return out, nil // reverted on chain
	}
	if !strings.EqualFold(receipt.To, c.contractAddress) {
		return out, nil // not a transfer through our token contract
	}

	amount, ok := parseTransferAmount(receipt.Logs, c.contractAddress)
	if !ok {
		return out, nil
	}

	out.Confirmed = true
	out.AmountMicros = amount
	out.Sender = strings.ToLower(receipt.From)
	return out, nil
}

type payoutRequest struct {
	AccountID     int64  `json:"account_id"`
	AmountMicros  int64  `json:"amount_micros"`
	WalletAddress string `json:"wallet_address"`
}

type payoutResponse struct {
	Confirmed bool   `json:"confirmed"`
	TxHash    string `json:"tx_hash"`
	Message   string `json:"message"`
}

// BroadcastOutgoingPayment hands a reserved withdrawal to the signing
// service, which builds, signs and broadcasts the on-chain transfer.
func (c *BSCClient) BroadcastOutgoingPayment(ctx context.Context, out ledger.OutgoingPayment) (ledger.PaymentBroadcast, error) {
	var result ledger.PaymentBroadcast

	var resp payoutResponse
	err := c.postJSON(ctx, c.payoutURL+"/v1/payouts", payoutRequest{
		AccountID:     out.AccountID,
		AmountMicros:  out.AmountMicros,
		WalletAddress: out.WalletAddress,
	}, &resp)
	if err != nil {
		return result, err
	}
	result.Confirmed = resp.Confirmed
	result.ExternalRef = resp.TxHash
	return result, nil
}

func (c *BSCClient) postJSON(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

// parseTransferAmount finds the token contract's Transfer event in the
// receipt logs and converts its amount from wei to micros.
func parseTransferAmount(logs []receiptLog, contractAddress string) (int64, bool) {
	for _, l := range logs {
		if !strings.EqualFold(l.Address, contractAddress) {
			continue
		}
		if len(l.Topics) == 0 || !strings.EqualFold(l.Topics[0], transferTopic) {
			continue
		}
		data := strings.TrimPrefix(l.Data, "0x")
		wei, ok := new(big.Int).SetString(data, 16)
		if !ok {
			return 0, false
		}
		micros := new(big.Int).Div(wei, weiPerMicro)
		if !micros.IsInt64() {
			return 0, false
		}
		return micros.Int64(), true
	}
	return 0, false
}
