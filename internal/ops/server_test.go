package ops

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usdtvault/internal/config"
	"usdtvault/internal/ledger"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(config.OpsConfig{}, logger, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPackagesEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/packages")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Packages []ledger.Package `json:"packages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Packages, 5)
	assert.Equal(t, "Starter Package", out.Packages[0].Name)
	assert.Equal(t, int64(20)*ledger.MicrosPerUSDT, out.Packages[0].MinMicros)
}

func TestInvalidAccountID(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{
		"/v1/accounts/0/balances",
		"/v1/accounts/abc/balances",
		"/v1/accounts/-3/balances",
	} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestWriteDomainErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ledger.ErrPackageNotFound, http.StatusNotFound},
		{ledger.ErrAccountNotFound, http.StatusNotFound},
		{ledger.ErrInvalidAmount, http.StatusBadRequest},
		{ledger.ErrInvalidRequest, http.StatusBadRequest},
		{ledger.ErrInsufficientFunds, http.StatusBadRequest},
		{ledger.ErrAccountBlocked, http.StatusForbidden},
		{ledger.ErrAlreadySettled, http.StatusConflict},
		{ledger.ErrLockContention, http.StatusConflict},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		writeDomainError(rec, tc.err)
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}
