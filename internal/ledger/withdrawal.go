package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RequestWithdrawal reserves funds for an outgoing payment: the balance is
// debited immediately and a pending withdrawal transaction records the
// reservation. The external broadcast happens later, outside any lock, and
// either finalizes the transaction or releases the reservation through the
// compensating credit in FailWithdrawal.
func (s *Service) RequestWithdrawal(ctx context.Context, in WithdrawalInput) (WithdrawalResult, error) {
	var out WithdrawalResult

	if in.AmountMicros <= 0 {
		return out, ErrInvalidAmount
	}
	if _, err := balanceColumn(in.Source); err != nil {
		return out, err
	}
	if err := ValidateWalletAddress(in.WalletAddress); err != nil {
		return out, err
	}

	settleKey := uuid.New()
	err := s.withTxRetry(ctx, func(tx pgx.Tx) error {
		balance, err := s.adjustBalanceTx(ctx, tx, in.AccountID, in.Source, -in.AmountMicros, false)
		if err != nil {
			return err
		}
		source := in.Source
		txID, err := insertTransactionTx(ctx, tx, txRecord{
			accountID:     in.AccountID,
			txType:        TxWithdrawal,
			amountMicros:  in.AmountMicros,
			source:        &source,
			walletAddress: in.WalletAddress,
			status:        TxPending,
			settleKey:     &settleKey,
		})
		if err != nil {
			return err
		}
		out.TransactionID = txID
		out.BalanceMicros = balance
		out.ReservedMicros = in.AmountMicros
		return nil
	})
	if err != nil {
		return WithdrawalResult{}, err
	}

	s.log.Info("withdrawal reserved",
		"account_id", in.AccountID, "transaction_id", out.TransactionID,
		"source", in.Source, "amount_micros", in.AmountMicros)
	return out, nil
}

// SettlePendingWithdrawals broadcasts every reserved withdrawal through the
// payment collaborator and finalizes each one. Broadcast errors and timeouts
// are failures: the reservation is released. Run by the worker.
func (s *Service) SettlePendingWithdrawals(ctx context.Context, gateway PaymentGateway) (SettlementReport, error) {
	var report SettlementReport

	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, amount_micros, COALESCE(wallet_address, '')
		FROM ledger.transactions
		WHERE type = 'withdrawal' AND status = 'pending'
		ORDER BY id
	`)
	if err != nil {
		return report, err
	}
	type pendingWithdrawal struct {
		id            int64
		accountID     int64
		amountMicros  int64
		walletAddress string
	}
	var pending []pendingWithdrawal
	for rows.Next() {
		var w pendingWithdrawal
		if err := rows.Scan(&w.id, &w.accountID, &w.amountMicros, &w.walletAddress); err != nil {
			rows.Close()
			return report, err
		}
		pending = append(pending, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return report, err
	}

	for _, w := range pending {
		report.Broadcast++

		broadcast, err := gateway.BroadcastOutgoingPayment(ctx, OutgoingPayment{
			AccountID:     w.accountID,
			AmountMicros:  w.amountMicros,
			WalletAddress: w.walletAddress,
		})
		if err != nil || !broadcast.Confirmed {
			if err != nil {
				s.log.Warn("withdrawal broadcast failed", "transaction_id", w.id, "err", err)
			} else {
				s.log.Warn("withdrawal rejected by payment network", "transaction_id", w.id)
			}
			if err := s.FailWithdrawal(ctx, w.id, "broadcast failed"); err != nil && !errors.Is(err, ErrAlreadySettled) {
				s.log.Error("withdrawal compensation failed", "transaction_id", w.id, "err", err)
				continue
			}
			report.Failed++
			continue
		}

		if err := s.FinalizeWithdrawal(ctx, w.id, broadcast.ExternalRef); err != nil {
			if !errors.Is(err, ErrAlreadySettled) {
				s.log.Error("withdrawal finalize failed", "transaction_id", w.id, "err", err)
			}
			continue
		}
		report.Completed++
	}
	return report, nil
}

// FinalizeWithdrawal moves a pending withdrawal to completed. The balance was
// already debited at request time, so no balance change happens here.
// Completed is terminal.
func (s *Service) FinalizeWithdrawal(ctx context.Context, transactionID int64, externalRef string) error {
	err := s.withTxRetry(ctx, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `
			UPDATE ledger.transactions
			SET status = 'completed', external_ref = $2, updated_at = now()
			WHERE id = $1 AND type = 'withdrawal' AND status = 'pending'
		`, transactionID, nullIfEmpty(externalRef))
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrAlreadySettled
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("withdrawal completed", "transaction_id", transactionID, "external_ref", externalRef)
	return nil
}

// FailWithdrawal moves a pending withdrawal to failed and re-credits the
// source balance in the same transaction. The status guard makes the
// compensating credit run exactly once no matter how many times the failure
// path fires. Failed is terminal.
func (s *Service) FailWithdrawal(ctx context.Context, transactionID int64, reason string) error {
	err := s.withTxRetry(ctx, func(tx pgx.Tx) error {
		var accountID, amountMicros int64
		var source *BalanceField
		var status TxStatus
		err := tx.QueryRow(ctx, `
			SELECT account_id, amount_micros, balance_source, status
			FROM ledger.transactions
			WHERE id = $1 AND type = 'withdrawal'
			FOR UPDATE
		`, transactionID).Scan(&accountID, &amountMicros, &source, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrInvalidRequest
			}
			return err
		}
		if status != TxPending {
			return ErrAlreadySettled
		}
		if source == nil {
			return ErrInvalidRequest
		}

		if _, err := tx.Exec(ctx, `
			UPDATE ledger.transactions
			SET status = 'failed', updated_at = now()
			WHERE id = $1
		`, transactionID); err != nil {
			return err
		}
		_, err = s.adjustBalanceTx(ctx, tx, accountID, *source, amountMicros, false)
		return err
	})
	if err != nil {
		return err
	}
	s.log.Info("withdrawal failed, reservation released", "transaction_id", transactionID, "reason", reason)
	return nil
}

// RejectWithdrawal is the back-office path into the failure transition.
func (s *Service) RejectWithdrawal(ctx context.Context, transactionID int64, reason string) error {
	if reason == "" {
		reason = "rejected"
	}
	return s.FailWithdrawal(ctx, transactionID, reason)
}

// PendingWithdrawals lists the reservations awaiting broadcast.
func (s *Service) PendingWithdrawals(ctx context.Context) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, type, amount_micros, balance_source,
		       COALESCE(wallet_address, ''), COALESCE(external_ref, ''),
		       investment_id, referral_level, status, created_at
		FROM ledger.transactions
		WHERE type = 'withdrawal' AND status = 'pending'
		ORDER BY created_at, id
	`)
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
