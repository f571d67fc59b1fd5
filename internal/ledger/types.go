package ledger

import "time"

type AccountStatus string

const (
	AccountActive  AccountStatus = "active"
	AccountBlocked AccountStatus = "blocked"
)

type BalanceField string

const (
	BalanceProfit BalanceField = "profit"
	BalanceBonus  BalanceField = "bonus"
)

type InvestmentStatus string

const (
	InvestmentPending    InvestmentStatus = "pending"
	InvestmentActive     InvestmentStatus = "active"
	InvestmentCompleted  InvestmentStatus = "completed"
	InvestmentTerminated InvestmentStatus = "terminated"
)

type TxType string

const (
	TxDeposit       TxType = "deposit"
	TxProfit        TxType = "profit"
	TxReferralBonus TxType = "referral_bonus"
	TxWithdrawal    TxType = "withdrawal"
)

type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxCompleted TxStatus = "completed"
	TxFailed    TxStatus = "failed"
)

type Account struct {
	ID                  int64         `json:"id"`
	Email               string        `json:"email"`
	WalletAddress       string        `json:"wallet_address,omitempty"`
	ReferralCode        string        `json:"referral_code"`
	ReferredBy          *int64        `json:"referred_by,omitempty"`
	ReferralDepth       int           `json:"referral_depth"`
	ProfitBalanceMicros int64         `json:"profit_balance_micros"`
	BonusBalanceMicros  int64         `json:"bonus_balance_micros"`
	Status              AccountStatus `json:"status"`
	CreatedAt           time.Time     `json:"created_at"`
}

type Investment struct {
	ID                  int64            `json:"id"`
	AccountID           int64            `json:"account_id"`
	PackageID           int              `json:"package_id"`
	AmountMicros        int64            `json:"amount_micros"`
	DailyRateBps        int32            `json:"daily_rate_bps"`
	AccruedProfitMicros int64            `json:"accrued_profit_micros"`
	StartDate           time.Time        `json:"start_date"`
	EndDate             time.Time        `json:"end_date"`
	LastAccrualAt       *time.Time       `json:"last_accrual_at,omitempty"`
	Status              InvestmentStatus `json:"status"`
	CreatedAt           time.Time        `json:"created_at"`
}

type Transaction struct {
	ID            int64         `json:"id"`
	AccountID     int64         `json:"account_id"`
	Type          TxType        `json:"type"`
	AmountMicros  int64         `json:"amount_micros"`
	BalanceSource *BalanceField `json:"balance_source,omitempty"`
	WalletAddress string        `json:"wallet_address,omitempty"`
	ExternalRef   string        `json:"external_ref,omitempty"`
	InvestmentID  *int64        `json:"investment_id,omitempty"`
	ReferralLevel *int          `json:"referral_level,omitempty"`
	Status        TxStatus      `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}

type Balances struct {
	AccountID           int64         `json:"account_id"`
	ProfitBalanceMicros int64         `json:"profit_balance_micros"`
	BonusBalanceMicros  int64         `json:"bonus_balance_micros"`
	Status              AccountStatus `json:"status"`
}

type CreateInvestmentInput struct {
	AccountID     int64
	PackageID     int
	AmountMicros  int64
	WalletAddress string
	// ExternalTxRef, when set, means the on-chain payment has not been
	// verified yet: the investment and its deposit start pending and the
	// confirmation batch activates them after the payment collaborator
	// confirms the transfer.
	ExternalTxRef string
}

type CreateInvestmentResult struct {
	InvestmentID int64            `json:"investment_id"`
	Status       InvestmentStatus `json:"status"`
	EndDate      time.Time        `json:"end_date"`
}

type WithdrawalInput struct {
	AccountID     int64
	Source        BalanceField
	AmountMicros  int64
	WalletAddress string
}

type WithdrawalResult struct {
	TransactionID  int64 `json:"transaction_id"`
	BalanceMicros  int64 `json:"balance_micros"`
	ReservedMicros int64 `json:"reserved_micros"`
}

type HistoryFilter struct {
	Type      TxType
	Status    TxStatus
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}

type AccountStats struct {
	TotalInvestedMicros int64 `json:"total_invested_micros"`
	TotalProfitMicros   int64 `json:"total_profit_micros"`
	TotalBonusMicros    int64 `json:"total_bonus_micros"`
	ActiveInvestments   int64 `json:"active_investments"`
}

// AccrualReport summarizes one run of the daily accrual cycle.
type AccrualReport struct {
	Selected   int   `json:"selected"`
	Accrued    int   `json:"accrued"`
	Skipped    int   `json:"skipped"`
	Failed     int   `json:"failed"`
	Retired    int64 `json:"retired"`
	PaidMicros int64 `json:"paid_micros"`
}

// ReconciliationRow reports the drift between a stored balance and the sum of
// its completed transactions. Both deltas are zero for a healthy account.
type ReconciliationRow struct {
	AccountID         int64 `json:"account_id"`
	ProfitDeltaMicros int64 `json:"profit_delta_micros"`
	BonusDeltaMicros  int64 `json:"bonus_delta_micros"`
}

// SettlementReport summarizes one pass of the withdrawal settlement batch.
type SettlementReport struct {
	Broadcast int `json:"broadcast"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// DepositConfirmReport summarizes one pass of the pending-deposit confirmer.
type DepositConfirmReport struct {
	Checked   int `json:"checked"`
	Confirmed int `json:"confirmed"`
	Rejected  int `json:"rejected"`
}
