// Package ops exposes the back-office HTTP surface over the ledger engine:
// balances, histories, withdrawal review and reconciliation. It replaces the
// original admin pages; the engine itself has no HTTP surface.
package ops

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"usdtvault/internal/config"
	"usdtvault/internal/ledger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	cfg    config.OpsConfig
	log    *slog.Logger
	ledger *ledger.Service
	mux    *chi.Mux
}

func New(cfg config.OpsConfig, logger *slog.Logger, svc *ledger.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		log:    logger,
		ledger: svc,
		mux:    chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/accounts", s.handleCreateAccount)
		r.Get("/packages", s.handlePackages)
		r.Get("/reconcile", s.handleReconcile)
		r.Post("/accrual/run", s.handleAccrualRun)
		r.Get("/withdrawals/pending", s.handlePendingWithdrawals)
		r.Post("/withdrawals/{id}/reject", s.handleRejectWithdrawal)

		r.Route("/accounts/{id}", func(r chi.Router) {
			r.Get("/balances", s.handleBalances)
			r.Get("/transactions", s.handleTransactions)
			r.Get("/investments", s.handleInvestments)
			r.Get("/stats", s.handleStats)
			r.Post("/invest", s.handleInvest)
			r.Post("/withdrawals", s.handleWithdraw)
			r.Post("/status", s.handleAccountStatus)
		})
	})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email         string `json:"email"`
		WalletAddress string `json:"wallet_address"`
		ReferralCode  string `json:"referral_code"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.ledger.EnsureAccount(r.Context(), in.Email, strings.TrimSpace(in.WalletAddress), strings.TrimSpace(in.ReferralCode))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handlePackages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"packages": ledger.Packages()})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.ledger.Balances(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	filter := ledger.HistoryFilter{
		Type:   ledger.TxType(strings.TrimSpace(q.Get("type"))),
		Status: ledger.TxStatus(strings.TrimSpace(q.Get("status"))),
		Limit:  queryInt(q.Get("limit"), 100),
		Offset: queryInt(q.Get("offset"), 0),
	}
	if v := q.Get("start_date"); v != "" {
		if t, err := time.Parse(time.DateOnly, v); err == nil {
			filter.StartDate = t
		}
	}
	if v := q.Get("end_date"); v != "" {
		if t, err := time.Parse(time.DateOnly, v); err == nil {
			filter.EndDate = t.AddDate(0, 0, 1)
		}
	}
	out, err := s.ledger.TransactionHistory(r.Context(), accountID, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func (s *Server) handleInvestments(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.ledger.AccountInvestments(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"investments": out})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.ledger.Stats(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleInvest(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in struct {
		PackageID     int     `json:"package_id"`
		AmountUSDT    float64 `json:"amount_usdt"`
		WalletAddress string  `json:"wallet_address"`
		ExternalTxRef string  `json:"external_tx_ref"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.ledger.CreateInvestment(r.Context(), ledger.CreateInvestmentInput{
		AccountID:     accountID,
		PackageID:     in.PackageID,
		AmountMicros:  ledger.USDTToMicros(in.AmountUSDT),
		WalletAddress: strings.TrimSpace(in.WalletAddress),
		ExternalTxRef: strings.TrimSpace(in.ExternalTxRef),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in struct {
		Source        string  `json:"source"`
		AmountUSDT    float64 `json:"amount_usdt"`
		WalletAddress string  `json:"wallet_address"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.ledger.RequestWithdrawal(r.Context(), ledger.WithdrawalInput{
		AccountID:     accountID,
		Source:        ledger.BalanceField(strings.ToLower(strings.TrimSpace(in.Source))),
		AmountMicros:  ledger.USDTToMicros(in.AmountUSDT),
		WalletAddress: strings.TrimSpace(in.WalletAddress),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleAccountStatus(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ledger.SetAccountStatus(r.Context(), accountID, ledger.AccountStatus(strings.ToLower(strings.TrimSpace(in.Status)))); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handlePendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	out, err := s.ledger.PendingWithdrawals(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"withdrawals": out})
}

func (s *Server) handleRejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	txID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ledger.RejectWithdrawal(r.Context(), txID, strings.TrimSpace(in.Reason)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	drift, err := s.ledger.Reconcile(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balanced": len(drift) == 0, "drift": drift})
}

func (s *Server) handleAccrualRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.ledger.RunAccrualCycle(r.Context(), s.cfg.AccrualWorkers)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrPackageNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrAccountBlocked):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrAlreadySettled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrLockContention):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
