package ledger

// Package is a static investment plan: allowed principal range, daily profit
// rate and contract duration. The catalog is read-only configuration; the
// engine copies the rate onto each investment at creation time so later
// catalog edits never touch existing contracts.
type Package struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	MinMicros    int64  `json:"min_micros"`
	MaxMicros    int64  `json:"max_micros"`
	DailyRateBps int32  `json:"daily_rate_bps"`
	DurationDays int    `json:"duration_days"`
}

var packageCatalog = map[int]Package{
	1: {ID: 1, Name: "Starter Package", MinMicros: 20 * MicrosPerUSDT, MaxMicros: 300 * MicrosPerUSDT, DailyRateBps: 100, DurationDays: 100},
	2: {ID: 2, Name: "Growth Package", MinMicros: 400 * MicrosPerUSDT, MaxMicros: 1_000 * MicrosPerUSDT, DailyRateBps: 200, DurationDays: 100},
	3: {ID: 3, Name: "Premium Package", MinMicros: 1_200 * MicrosPerUSDT, MaxMicros: 3_000 * MicrosPerUSDT, DailyRateBps: 300, DurationDays: 100},
	4: {ID: 4, Name: "Elite Package", MinMicros: 3_200 * MicrosPerUSDT, MaxMicros: 5_000 * MicrosPerUSDT, DailyRateBps: 100, DurationDays: 100},
	5: {ID: 5, Name: "VIP Package", MinMicros: 5_200 * MicrosPerUSDT, MaxMicros: 10_000 * MicrosPerUSDT, DailyRateBps: 100, DurationDays: 100},
}

// referralBonusBps maps upline level (1-indexed, direct referrer first) to the
// commission rate applied to the triggering deposit.
var referralBonusBps = map[int]int32{
	1: 1_000, // 10%
	2: 700,   // 7%
	3: 400,   // 4%
	4: 200,   // 2%
	5: 100,   // 1%
}

func LookupPackage(id int) (Package, bool) {
	p, ok := packageCatalog[id]
	return p, ok
}

func Packages() []Package {
	out := make([]Package, 0, len(packageCatalog))
	for id := 1; id <= len(packageCatalog); id++ {
		if p, ok := packageCatalog[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func ReferralBonusBps(level int) int32 {
	return referralBonusBps[level]
}

// BonusSchedule returns the commission amounts a deposit would pay per upline
// level, in walk order. Used by the cascade and directly testable.
func BonusSchedule(depositMicros int64) []int64 {
	out := make([]int64, MaxReferralLevels)
	for level := 1; level <= MaxReferralLevels; level++ {
		out[level-1] = ApplyRateBps(depositMicros, referralBonusBps[level])
	}
	return out
}
