package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usdtvault/internal/ledger"
)

const testContract = "0x55d398326f99059ff775485246999027b3197955"

func rpcNode(t *testing.T, result any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "eth_getTransactionReceipt", req.Method)
		require.Len(t, req.Params, 1)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
}

// transferData hex-encodes a USDT amount as the 32-byte Transfer event
// payload, using BSC's 18 token decimals.
func transferData(usdt int64) string {
	wei := new(big.Int).Mul(big.NewInt(usdt), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	return fmt.Sprintf("0x%064x", wei)
}

func confirmedReceipt(amountUSDT int64) map[string]any {
	return map[string]any{
		"status": "0x1",
		"from":   "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
		"to":     testContract,
		"logs": []map[string]any{
			{
				"address": testContract,
				"topics":  []string{transferTopic, "0x0", "0x1"},
				"data":    transferData(amountUSDT),
			},
		},
	}
}

func TestVerifyIncomingPaymentConfirmed(t *testing.T) {
	node := rpcNode(t, confirmedReceipt(250))
	defer node.Close()

	c := NewBSCClient(node.URL, "http://unused", testContract, 0)
	got, err := c.VerifyIncomingPayment(context.Background(), "0xdeadbeef")
	require.NoError(t, err)
	assert.True(t, got.Confirmed)
	assert.Equal(t, int64(250)*ledger.MicrosPerUSDT, got.AmountMicros)
	assert.Equal(t, "0xab5801a7d398351b8be11c439e05c5b3259aec9b", got.Sender)
}

func TestVerifyIncomingPaymentNotMined(t *testing.T) {
	node := rpcNode(t, nil)
	defer node.Close()

	c := NewBSCClient(node.URL, "http://unused", testContract, 0)
	got, err := c.VerifyIncomingPayment(context.Background(), "0xdeadbeef")
	require.NoError(t, err)
	assert.False(t, got.Confirmed)
}

func TestVerifyIncomingPaymentReverted(t *testing.T) {
	receipt := confirmedReceipt(250)
	receipt["status"] = "0x0"
	node := rpcNode(t, receipt)
	defer node.Close()

	c := NewBSCClient(node.URL, "http://unused", testContract, 0)
	got, err := c.VerifyIncomingPayment(context.Background(), "0xdeadbeef")
	require.NoError(t, err)
	assert.False(t, got.Confirmed)
}

func TestVerifyIncomingPaymentWrongContract(t *testing.T) {
	receipt := confirmedReceipt(250)
	receipt["to"] = "0x0000000000000000000000000000000000000bad"
	node := rpcNode(t, receipt)
	defer node.Close()

	c := NewBSCClient(node.URL, "http://unused", testContract, 0)
	got, err := c.VerifyIncomingPayment(context.Background(), "0xdeadbeef")
	require.NoError(t, err)
	assert.False(t, got.Confirmed)
}

func TestVerifyIncomingPaymentNoTransferLog(t *testing.T) {
	receipt := confirmedReceipt(250)
	receipt["logs"] = []map[string]any{}
	node := rpcNode(t, receipt)
	defer node.Close()

	c := NewBSCClient(node.URL, "http://unused", testContract, 0)
	got, err := c.VerifyIncomingPayment(context.Background(), "0xdeadbeef")
	require.NoError(t, err)
	assert.False(t, got.Confirmed)
}

func TestVerifyIncomingPaymentRPCError(t *testing.T) {
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"header not found"}}`))
	}))
	defer node.Close()

	c := NewBSCClient(node.URL, "http://unused", testContract, 0)
	_, err := c.VerifyIncomingPayment(context.Background(), "0xdeadbeef")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestVerifyIncomingPaymentNodeDown(t *testing.T) {
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer node.Close()

	c := NewBSCClient(node.URL, "http://unused", testContract, 0)
	_, err := c.VerifyIncomingPayment(context.Background(), "0xdeadbeef")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestBroadcastOutgoingPayment(t *testing.T) {
	payout := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payouts", r.URL.Path)
		var req payoutRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(42), req.AccountID)
		assert.Equal(t, int64(75)*ledger.MicrosPerUSDT, req.AmountMicros)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payoutResponse{Confirmed: true, TxHash: "0xfeedface"})
	}))
	defer payout.Close()

	c := NewBSCClient("http://unused", payout.URL, testContract, 0)
	got, err := c.BroadcastOutgoingPayment(context.Background(), ledger.OutgoingPayment{
		AccountID:     42,
		AmountMicros:  75 * ledger.MicrosPerUSDT,
		WalletAddress: "0x0000000000000000000000000000000000000001",
	})
	require.NoError(t, err)
	assert.True(t, got.Confirmed)
	assert.Equal(t, "0xfeedface", got.ExternalRef)
}

func TestBroadcastOutgoingPaymentRejected(t *testing.T) {
	payout := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payoutResponse{Confirmed: false, Message: "hot wallet empty"})
	}))
	defer payout.Close()

	c := NewBSCClient("http://unused", payout.URL, testContract, 0)
	got, err := c.BroadcastOutgoingPayment(context.Background(), ledger.OutgoingPayment{AccountID: 1, AmountMicros: 1})
	require.NoError(t, err)
	assert.False(t, got.Confirmed)
}

func TestBroadcastOutgoingPaymentServiceDown(t *testing.T) {
	payout := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer payout.Close()

	c := NewBSCClient("http://unused", payout.URL, testContract, 0)
	_, err := c.BroadcastOutgoingPayment(context.Background(), ledger.OutgoingPayment{AccountID: 1, AmountMicros: 1})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestParseTransferAmount(t *testing.T) {
	logs := []receiptLog{
		{Address: "0x000000000000000000000000000000000000dead", Topics: []string{transferTopic}, Data: transferData(999)},
		{Address: testContract, Topics: []string{transferTopic}, Data: transferData(20)},
	}
	got, ok := parseTransferAmount(logs, testContract)
	require.True(t, ok)
	assert.Equal(t, int64(20)*ledger.MicrosPerUSDT, got)

	_, ok = parseTransferAmount([]receiptLog{{Address: testContract, Topics: []string{"0xother"}, Data: transferData(20)}}, testContract)
	assert.False(t, ok)

	_, ok = parseTransferAmount([]receiptLog{{Address: testContract, Topics: []string{transferTopic}, Data: "0xzz"}}, testContract)
	assert.False(t, ok)
}
