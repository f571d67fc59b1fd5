package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

// RunAccrualCycle applies one day of profit to every eligible investment and
// retires the ones whose contract has run out. Investments are processed
// concurrently across a bounded worker pool, each inside its own transaction,
// so one failure never aborts the rest. The day guard on last_accrual_at is
// re-checked under the row lock, which makes re-running the cycle within the
// same day a no-op.
func (s *Service) RunAccrualCycle(ctx context.Context, workers int) (AccrualReport, error) {
	if workers <= 0 {
		workers = 4
	}
	var report AccrualReport
	started := time.Now()

	rows, err := s.db.Query(ctx, `
		SELECT id
		FROM ledger.investments
		WHERE status = 'active'
		  AND end_date > now()
		  AND (last_accrual_at IS NULL OR last_accrual_at < date_trunc('day', now()))
		ORDER BY id
	`)
	if err != nil {
		return report, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return report, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return report, err
	}
	report.Selected = len(ids)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			paid, err := s.accrueInvestment(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				s.log.Error("accrual failed", "investment_id", id, "err", err)
			case paid == 0:
				report.Skipped++
			default:
				report.Accrued++
				report.PaidMicros += paid
			}
			// Per-investment failures are isolated; never cancel the group.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	cmd, err := s.db.Exec(ctx, `
		UPDATE ledger.investments
		SET status = 'completed', updated_at = now()
		WHERE status = 'active' AND end_date <= now()
	`)
	if err != nil {
		return report, err
	}
	report.Retired = cmd.RowsAffected()

	s.log.Info("accrual cycle complete",
		"selected", report.Selected, "accrued", report.Accrued, "skipped", report.Skipped,
		"failed", report.Failed, "retired", report.Retired,
		"paid_micros", report.PaidMicros, "elapsed", time.Since(started).String())
	return report, nil
}

// accrueInvestment pays a single day of profit for one investment. Returns
// the amount paid, zero when the investment turned out to be ineligible under
// the lock (already accrued today, matured, or owner blocked).
func (s *Service) accrueInvestment(ctx context.Context, investmentID int64) (int64, error) {
	var paid int64
	err := s.withTxRetry(ctx, func(tx pgx.Tx) error {
		paid = 0

		var accountID, amountMicros int64
		var rateBps int32
		var status InvestmentStatus
		var endDate time.Time
		var lastAccrualAt *time.Time
		err := tx.QueryRow(ctx, `
			SELECT account_id, amount_micros, daily_rate_bps, status, end_date, last_accrual_at
			FROM ledger.investments
			WHERE id = $1
			FOR UPDATE
		`, investmentID).Scan(&accountID, &amountMicros, &rateBps, &status, &endDate, &lastAccrualAt)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		dayStart := now.Truncate(24 * time.Hour)
		if status != InvestmentActive || !endDate.After(now) {
			return nil
		}
		if lastAccrualAt != nil && !lastAccrualAt.UTC().Before(dayStart) {
			return nil
		}

		var accStatus AccountStatus
		if err := tx.QueryRow(ctx, `
			SELECT status FROM ledger.accounts WHERE id = $1
		`, accountID).Scan(&accStatus); err != nil {
			return err
		}
		if accStatus != AccountActive {
			return nil
		}

		profit := ApplyRateBps(amountMicros, rateBps)
		if profit == 0 {
			return nil
		}

		if _, err := tx.Exec(ctx, `
			UPDATE ledger.investments
			SET accrued_profit_micros = accrued_profit_micros + $1,
			    last_accrual_at = now(),
			    updated_at = now()
			WHERE id = $2
		`, profit, investmentID); err != nil {
			return err
		}
		if _, err := s.adjustBalanceTx(ctx, tx, accountID, BalanceProfit, profit, false); err != nil {
			return err
		}
		if _, err := insertTransactionTx(ctx, tx, txRecord{
			accountID:    accountID,
			txType:       TxProfit,
			amountMicros: profit,
			investmentID: &investmentID,
			status:       TxCompleted,
		}); err != nil {
			return err
		}
		paid = profit
		return nil
	})
	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return paid, err
}
