package ledger

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service is the ledger engine. Every balance mutation flows through
// adjustBalanceTx inside a single database transaction; no other code writes
// balance columns.
type Service struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewService(db *pgxpool.Pool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, log: logger}
}

const maxTxAttempts = 8

// withTxRetry runs fn inside a transaction, retrying a bounded number of
// times with backoff when the database reports lock or serialization
// contention. Any other error rolls back and surfaces immediately.
func (s *Service) withTxRetry(ctx context.Context, fn func(tx pgx.Tx) error) error {
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isRetryableTxError(err) {
			return err
		}
		if attempt == maxTxAttempts-1 {
			return ErrLockContention
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return ErrLockContention
}

func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03": // serialization failure, deadlock, lock timeout
		return true
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func balanceColumn(field BalanceField) (string, error) {
	switch field {
	case BalanceProfit:
		return "profit_balance_micros", nil
	case BalanceBonus:
		return "bonus_balance_micros", nil
	}
	return "", fmt.Errorf("%w: unknown balance field %q", ErrInvalidRequest, field)
}

// adjustBalanceTx is the account balance manager: it locks the account row,
// applies the delta and persists the new value. Returns the post-adjustment
// balance. Blocked accounts cannot be debited; credits still land so a
// compensating credit can never strand reserved funds. Operations gate their
// own credits on account status before calling in. Callers own the
// surrounding transaction and any transaction-record inserts.
func (s *Service) adjustBalanceTx(ctx context.Context, tx pgx.Tx, accountID int64, field BalanceField, deltaMicros int64, allowNegative bool) (int64, error) {
	column, err := balanceColumn(field)
	if err != nil {
		return 0, err
	}

	var current int64
	var status AccountStatus
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s, status
		FROM ledger.accounts
		WHERE id = $1
		FOR UPDATE
	`, column), accountID).Scan(&current, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	if status != AccountActive && deltaMicros < 0 {
		return 0, ErrAccountBlocked
	}

	next := current + deltaMicros
	if !allowNegative && next < 0 {
		return 0, ErrInsufficientFunds
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE ledger.accounts
		SET %s = $1, updated_at = now()
		WHERE id = $2
	`, column), next, accountID); err != nil {
		return 0, err
	}
	return next, nil
}

// EnsureAccount creates the ledger account for an externally registered user
// if it does not exist yet, resolving the referrer by referral code. Account
// creation itself is owned by the registration system; this is the idempotent
// hook it calls.
func (s *Service) EnsureAccount(ctx context.Context, email, walletAddress, referrerCode string) (Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Account{}, fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}
	code, err := generateReferralCode()
	if err != nil {
		return Account{}, err
	}

	var referredBy *int64
	depth := 0
	if referrerCode = strings.TrimSpace(referrerCode); referrerCode != "" {
		var refID int64
		var refDepth int
		err := s.db.QueryRow(ctx, `
			SELECT id, referral_depth
			FROM ledger.accounts
			WHERE referral_code = $1
		`, strings.ToUpper(referrerCode)).Scan(&refID, &refDepth)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return Account{}, err
		}
		if err == nil {
			referredBy = &refID
			depth = refDepth + 1
		}
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO ledger.accounts (email, wallet_address, referral_code, referred_by, referral_depth)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
	`, email, walletAddress, code, referredBy, depth)
	if err != nil {
		return Account{}, err
	}
	return s.AccountByEmail(ctx, email)
}

func (s *Service) AccountByEmail(ctx context.Context, email string) (Account, error) {
	return s.scanAccount(s.db.QueryRow(ctx, `
		SELECT id, email, COALESCE(wallet_address, ''), referral_code, referred_by, referral_depth,
		       profit_balance_micros, bonus_balance_micros, status, created_at
		FROM ledger.accounts
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))))
}

func (s *Service) AccountByID(ctx context.Context, accountID int64) (Account, error) {
	return s.scanAccount(s.db.QueryRow(ctx, `
		SELECT id, email, COALESCE(wallet_address, ''), referral_code, referred_by, referral_depth,
		       profit_balance_micros, bonus_balance_micros, status, created_at
		FROM ledger.accounts
		WHERE id = $1
	`, accountID))
}

func (s *Service) scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.WalletAddress, &a.ReferralCode, &a.ReferredBy, &a.ReferralDepth,
		&a.ProfitBalanceMicros, &a.BonusBalanceMicros, &a.Status, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	return a, err
}

func (s *Service) Balances(ctx context.Context, accountID int64) (Balances, error) {
	var b Balances
	b.AccountID = accountID
	err := s.db.QueryRow(ctx, `
		SELECT profit_balance_micros, bonus_balance_micros, status
		FROM ledger.accounts
		WHERE id = $1
	`, accountID).Scan(&b.ProfitBalanceMicros, &b.BonusBalanceMicros, &b.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return b, ErrAccountNotFound
	}
	return b, err
}

// SetAccountStatus blocks or unblocks an account. Blocked accounts fail every
// balance-mutating operation until unblocked.
func (s *Service) SetAccountStatus(ctx context.Context, accountID int64, status AccountStatus) error {
	if status != AccountActive && status != AccountBlocked {
		return fmt.Errorf("%w: unknown account status %q", ErrInvalidRequest, status)
	}
	cmd, err := s.db.Exec(ctx, `
		UPDATE ledger.accounts
		SET status = $1, updated_at = now()
		WHERE id = $2
	`, status, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	s.log.Info("account status changed", "account_id", accountID, "status", status)
	return nil
}

func (s *Service) TransactionHistory(ctx context.Context, accountID int64, filter HistoryFilter) ([]Transaction, error) {
	query := `
		SELECT id, account_id, type, amount_micros, balance_source,
		       COALESCE(wallet_address, ''), COALESCE(external_ref, ''),
		       investment_id, referral_level, status, created_at
		FROM ledger.transactions
		WHERE account_id = $1`
	args := []any{accountID}

	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !filter.StartDate.IsZero() {
		args = append(args, filter.StartDate)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.EndDate.IsZero() {
		args = append(args, filter.EndDate)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Transaction, 0)
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Type, &t.AmountMicros, &t.BalanceSource,
			&t.WalletAddress, &t.ExternalRef, &t.InvestmentID, &t.ReferralLevel, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Service) TransactionDetail(ctx context.Context, transactionID, accountID int64) (Transaction, error) {
	var t Transaction
	err := s.db.QueryRow(ctx, `
		SELECT id, account_id, type, amount_micros, balance_source,
		       COALESCE(wallet_address, ''), COALESCE(external_ref, ''),
		       investment_id, referral_level, status, created_at
		FROM ledger.transactions
		WHERE id = $1 AND account_id = $2
	`, transactionID, accountID).Scan(&t.ID, &t.AccountID, &t.Type, &t.AmountMicros, &t.BalanceSource,
		&t.WalletAddress, &t.ExternalRef, &t.InvestmentID, &t.ReferralLevel, &t.Status, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrInvalidRequest
	}
	return t, err
}

func (s *Service) Stats(ctx context.Context, accountID int64) (AccountStats, error) {
	var st AccountStats
	err := s.db.QueryRow(ctx, `
		SELECT
			COALESCE((SELECT SUM(amount_micros) FROM ledger.investments WHERE account_id = $1 AND status IN ('active', 'completed')), 0),
			COALESCE((SELECT SUM(amount_micros) FROM ledger.transactions WHERE account_id = $1 AND type = 'profit' AND status = 'completed'), 0),
			COALESCE((SELECT SUM(amount_micros) FROM ledger.transactions WHERE account_id = $1 AND type = 'referral_bonus' AND status = 'completed'), 0),
			(SELECT COUNT(*) FROM ledger.investments WHERE account_id = $1 AND status = 'active')
	`, accountID).Scan(&st.TotalInvestedMicros, &st.TotalProfitMicros, &st.TotalBonusMicros, &st.ActiveInvestments)
	return st, err
}

// Reconcile recomputes every balance from the transaction ledger and returns
// the accounts whose stored balances disagree. Pending withdrawals count as
// debits: the reservation has already left the stored balance. An empty
// result means the reconciliation invariant holds across the whole ledger.
func (s *Service) Reconcile(ctx context.Context) ([]ReconciliationRow, error) {
	rows, err := s.db.Query(ctx, `
		WITH sums AS (
			SELECT account_id,
			       COALESCE(SUM(amount_micros) FILTER (WHERE type = 'profit' AND status = 'completed'), 0)
			     - COALESCE(SUM(amount_micros) FILTER (WHERE type = 'withdrawal' AND status IN ('pending', 'completed') AND balance_source = 'profit'), 0) AS profit_expected,
			       COALESCE(SUM(amount_micros) FILTER (WHERE type = 'referral_bonus' AND status = 'completed'), 0)
			     - COALESCE(SUM(amount_micros) FILTER (WHERE type = 'withdrawal' AND status IN ('pending', 'completed') AND balance_source = 'bonus'), 0) AS bonus_expected
			FROM ledger.transactions
			GROUP BY account_id
		)
		SELECT a.id,
		       a.profit_balance_micros - COALESCE(s.profit_expected, 0),
		       a.bonus_balance_micros - COALESCE(s.bonus_expected, 0)
		FROM ledger.accounts a
		LEFT JOIN sums s ON s.account_id = a.id
		WHERE a.profit_balance_micros <> COALESCE(s.profit_expected, 0)
		   OR a.bonus_balance_micros <> COALESCE(s.bonus_expected, 0)
		ORDER BY a.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ReconciliationRow, 0)
	for rows.Next() {
		var r ReconciliationRow
		if err := rows.Scan(&r.AccountID, &r.ProfitDeltaMicros, &r.BonusDeltaMicros); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func generateReferralCode() (string, error) {
	const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = letters[int(buf[i])%len(letters)]
	}
	return string(buf), nil
}
