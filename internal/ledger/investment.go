package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateInvestment opens a deposit into a catalog package. Without an
// external transaction reference the deposit is taken as already verified:
// the investment starts active, the deposit record is completed and the
// referral cascade runs in the same transaction. With a reference, both start
// pending and ConfirmPendingDeposits finishes the job once the payment
// collaborator confirms the transfer.
func (s *Service) CreateInvestment(ctx context.Context, in CreateInvestmentInput) (CreateInvestmentResult, error) {
	var out CreateInvestmentResult

	pkg, ok := LookupPackage(in.PackageID)
	if !ok {
		return out, ErrPackageNotFound
	}
	if in.AmountMicros < pkg.MinMicros || in.AmountMicros > pkg.MaxMicros {
		return out, fmt.Errorf("%w: amount must be between %.2f and %.2f USDT",
			ErrInvalidAmount, MicrosToUSDT(pkg.MinMicros), MicrosToUSDT(pkg.MaxMicros))
	}
	if err := ValidateWalletAddress(in.WalletAddress); err != nil {
		return out, err
	}

	status := InvestmentActive
	txStatus := TxCompleted
	if strings.TrimSpace(in.ExternalTxRef) != "" {
		status = InvestmentPending
		txStatus = TxPending
	}

	err := s.withTxRetry(ctx, func(tx pgx.Tx) error {
		// Lock the investor row first; cascade locks follow top-down so
		// concurrent deposits in one chain cannot deadlock.
		var accStatus AccountStatus
		err := tx.QueryRow(ctx, `
			SELECT status FROM ledger.accounts WHERE id = $1 FOR UPDATE
		`, in.AccountID).Scan(&accStatus)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrAccountNotFound
			}
			return err
		}
		if accStatus != AccountActive {
			return ErrAccountBlocked
		}

		now := time.Now().UTC()
		endDate := now.AddDate(0, 0, pkg.DurationDays)
		if err := tx.QueryRow(ctx, `
			INSERT INTO ledger.investments (account_id, package_id, amount_micros, daily_rate_bps, start_date, end_date, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, in.AccountID, pkg.ID, in.AmountMicros, pkg.DailyRateBps, now, endDate, status).Scan(&out.InvestmentID); err != nil {
			return err
		}
		out.Status = status
		out.EndDate = endDate

		if _, err := insertTransactionTx(ctx, tx, txRecord{
			accountID:     in.AccountID,
			txType:        TxDeposit,
			amountMicros:  in.AmountMicros,
			walletAddress: in.WalletAddress,
			externalRef:   in.ExternalTxRef,
			investmentID:  &out.InvestmentID,
			status:        txStatus,
		}); err != nil {
			return err
		}

		if status == InvestmentActive {
			if err := s.cascadeReferralBonusTx(ctx, tx, in.AccountID, in.AmountMicros); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return CreateInvestmentResult{}, err
	}

	s.log.Info("investment created",
		"account_id", in.AccountID, "investment_id", out.InvestmentID,
		"package_id", pkg.ID, "amount_micros", in.AmountMicros, "status", out.Status)
	return out, nil
}

// ConfirmPendingDeposits verifies unconfirmed deposits against the payment
// collaborator and activates the backing investments. Verification happens
// outside any lock; each confirmed deposit is finalized in its own
// transaction together with its referral cascade.
func (s *Service) ConfirmPendingDeposits(ctx context.Context, gateway PaymentGateway) (DepositConfirmReport, error) {
	var report DepositConfirmReport

	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, amount_micros, external_ref, investment_id
		FROM ledger.transactions
		WHERE type = 'deposit' AND status = 'pending' AND external_ref IS NOT NULL
		ORDER BY id
	`)
	if err != nil {
		return report, err
	}
	type pendingDeposit struct {
		id           int64
		accountID    int64
		amountMicros int64
		externalRef  string
		investmentID *int64
	}
	var deposits []pendingDeposit
	for rows.Next() {
		var d pendingDeposit
		if err := rows.Scan(&d.id, &d.accountID, &d.amountMicros, &d.externalRef, &d.investmentID); err != nil {
			rows.Close()
			return report, err
		}
		deposits = append(deposits, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return report, err
	}

	for _, d := range deposits {
		report.Checked++

		verification, err := gateway.VerifyIncomingPayment(ctx, d.externalRef)
		if err != nil {
			s.log.Warn("deposit verification failed", "transaction_id", d.id, "external_ref", d.externalRef, "err", err)
			continue
		}
		if !verification.Confirmed {
			// Not on chain yet; try again next cycle.
			continue
		}

		if verification.AmountMicros < d.amountMicros {
			if err := s.rejectDeposit(ctx, d.id, d.investmentID); err != nil {
				s.log.Error("deposit rejection failed", "transaction_id", d.id, "err", err)
				continue
			}
			report.Rejected++
			s.log.Warn("deposit rejected: on-chain amount below invested amount",
				"transaction_id", d.id, "expected_micros", d.amountMicros, "received_micros", verification.AmountMicros)
			continue
		}

		err = s.withTxRetry(ctx, func(tx pgx.Tx) error {
			cmd, err := tx.Exec(ctx, `
				UPDATE ledger.transactions
				SET status = 'completed', updated_at = now()
				WHERE id = $1 AND status = 'pending'
			`, d.id)
			if err != nil {
				return err
			}
			if cmd.RowsAffected() == 0 {
				return ErrNotPending
			}
			if d.investmentID != nil {
				// The contract clock starts at confirmation, not at request
				// time; keep the package duration.
				if _, err := tx.Exec(ctx, `
					UPDATE ledger.investments
					SET status = 'active',
					    end_date = now() + (end_date - start_date),
					    start_date = now(),
					    updated_at = now()
					WHERE id = $1 AND status = 'pending'
				`, *d.investmentID); err != nil {
					return err
				}
			}
			return s.cascadeReferralBonusTx(ctx, tx, d.accountID, d.amountMicros)
		})
		if err != nil {
			if errors.Is(err, ErrNotPending) {
				continue
			}
			s.log.Error("deposit confirmation failed", "transaction_id", d.id, "err", err)
			continue
		}
		report.Confirmed++
		s.log.Info("deposit confirmed", "transaction_id", d.id, "account_id", d.accountID, "amount_micros", d.amountMicros)
	}
	return report, nil
}

func (s *Service) rejectDeposit(ctx context.Context, transactionID int64, investmentID *int64) error {
	return s.withTxRetry(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE ledger.transactions
			SET status = 'failed', updated_at = now()
			WHERE id = $1 AND status = 'pending'
		`, transactionID); err != nil {
			return err
		}
		if investmentID == nil {
			return nil
		}
		_, err := tx.Exec(ctx, `
			UPDATE ledger.investments
			SET status = 'terminated', updated_at = now()
			WHERE id = $1 AND status = 'pending'
		`, *investmentID)
		return err
	})
}

func (s *Service) AccountInvestments(ctx context.Context, accountID int64) ([]Investment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, package_id, amount_micros, daily_rate_bps, accrued_profit_micros,
		       start_date, end_date, last_accrual_at, status, created_at
		FROM ledger.investments
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Investment, 0)
	for rows.Next() {
		var inv Investment
		if err := rows.Scan(&inv.ID, &inv.AccountID, &inv.PackageID, &inv.AmountMicros, &inv.DailyRateBps,
			&inv.AccruedProfitMicros, &inv.StartDate, &inv.EndDate, &inv.LastAccrualAt, &inv.Status, &inv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *Service) InvestmentDetail(ctx context.Context, investmentID, accountID int64) (Investment, error) {
	var inv Investment
	err := s.db.QueryRow(ctx, `
		SELECT id, account_id, package_id, amount_micros, daily_rate_bps, accrued_profit_micros,
		       start_date, end_date, last_accrual_at, status, created_at
		FROM ledger.investments
		WHERE id = $1 AND account_id = $2
	`, investmentID, accountID).Scan(&inv.ID, &inv.AccountID, &inv.PackageID, &inv.AmountMicros, &inv.DailyRateBps,
		&inv.AccruedProfitMicros, &inv.StartDate, &inv.EndDate, &inv.LastAccrualAt, &inv.Status, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return inv, ErrInvalidRequest
	}
	return inv, err
}

// txRecord is an append-only ledger entry to insert. Only status and
// external_ref ever change after the insert.
type txRecord struct {
	accountID     int64
	txType        TxType
	amountMicros  int64
	source        *BalanceField
	walletAddress string
	externalRef   string
	investmentID  *int64
	referralLevel *int
	status        TxStatus
	settleKey     *uuid.UUID
}

func insertTransactionTx(ctx context.Context, tx pgx.Tx, rec txRecord) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO ledger.transactions
		    (account_id, type, amount_micros, balance_source, wallet_address, external_ref, investment_id, referral_level, status, settle_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, rec.accountID, rec.txType, rec.amountMicros, rec.source,
		nullIfEmpty(rec.walletAddress), nullIfEmpty(rec.externalRef),
		rec.investmentID, rec.referralLevel, rec.status, rec.settleKey).Scan(&id)
	return id, err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
