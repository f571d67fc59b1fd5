package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// cascadeReferralBonusTx walks the investor's upline and credits the
// percentage commission for the deposit at each level, up to
// MaxReferralLevels. It runs inside the transaction that recorded the deposit
// so a bonus can never exist without its originating deposit. Ancestors are
// locked in walk order (direct referrer first); blocked ancestors receive
// nothing but do not break the chain above them.
func (s *Service) cascadeReferralBonusTx(ctx context.Context, tx pgx.Tx, investorID, depositMicros int64) error {
	var current *int64
	if err := tx.QueryRow(ctx, `
		SELECT referred_by FROM ledger.accounts WHERE id = $1
	`, investorID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return err
	}

	for level := 1; level <= MaxReferralLevels && current != nil; level++ {
		ancestorID := *current
		bonus := ApplyRateBps(depositMicros, ReferralBonusBps(level))

		// Read the next hop and the ancestor's status before crediting so a
		// skipped ancestor still advances the walk.
		var next *int64
		var status AccountStatus
		if err := tx.QueryRow(ctx, `
			SELECT referred_by, status FROM ledger.accounts WHERE id = $1
		`, ancestorID).Scan(&next, &status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}

		if bonus > 0 && status == AccountActive {
			if _, err := s.adjustBalanceTx(ctx, tx, ancestorID, BalanceBonus, bonus, false); err != nil {
				return err
			}
			lvl := level
			if _, err := insertTransactionTx(ctx, tx, txRecord{
				accountID:     ancestorID,
				txType:        TxReferralBonus,
				amountMicros:  bonus,
				referralLevel: &lvl,
				status:        TxCompleted,
			}); err != nil {
				return err
			}
		} else if bonus > 0 {
			s.log.Warn("referral bonus skipped: ancestor blocked",
				"ancestor_id", ancestorID, "level", level, "bonus_micros", bonus)
		}
		current = next
	}
	return nil
}
