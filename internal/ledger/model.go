package ledger

import (
	"errors"
	"math"
	"regexp"
	"strings"
)

const (
	// MicrosPerUSDT is the fixed-point scale for all monetary columns.
	// USDT carries 6 decimals on chain, so one micro is the smallest
	// representable unit.
	MicrosPerUSDT = int64(1_000_000)

	// BpsScale converts basis-point rates to fractions. A 1% daily rate is
	// stored as 100 bps.
	BpsScale = int64(10_000)

	// MaxReferralLevels caps the upline walk of the commission cascade.
	MaxReferralLevels = 5
)

var (
	ErrPackageNotFound   = errors.New("investment package not found")
	ErrInvalidAmount     = errors.New("amount outside package bounds")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountBlocked    = errors.New("account is blocked")
	ErrLockContention    = errors.New("row lock contention, retry later")
	ErrAlreadySettled    = errors.New("withdrawal already settled")
	ErrNotPending        = errors.New("transaction is not pending")
)

// walletAddressRE matches a hex BSC/ERC-20 style address.
var walletAddressRE = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

func ValidateWalletAddress(address string) error {
	if !walletAddressRE.MatchString(strings.TrimSpace(address)) {
		return ErrInvalidRequest
	}
	return nil
}

func USDTToMicros(v float64) int64 {
	return int64(math.Round(v * float64(MicrosPerUSDT)))
}

func MicrosToUSDT(v int64) float64 {
	return float64(v) / float64(MicrosPerUSDT)
}

// ApplyRateBps returns amount scaled by a basis-point rate, truncated toward
// zero so the ledger never credits more than the exact product.
func ApplyRateBps(amountMicros int64, rateBps int32) int64 {
	if amountMicros <= 0 || rateBps <= 0 {
		return 0
	}
	return amountMicros * int64(rateBps) / BpsScale
}
