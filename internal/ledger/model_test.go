package ledger

import "testing"

func TestValidateWalletAddress(t *testing.T) {
	valid := []string{
		"0x55d398326f99059ff775485246999027b3197955",
		"0x55D398326F99059FF775485246999027B3197955",
		"  0x0000000000000000000000000000000000000001  ",
	}
	for _, a := range valid {
		if err := ValidateWalletAddress(a); err != nil {
			t.Fatalf("expected address %q to be valid: %v", a, err)
		}
	}

	invalid := []string{
		"",
		"55d398326f99059ff775485246999027b3197955",
		"0x55d398326f99059ff775485246999027b31979",
		"0x55d398326f99059ff775485246999027b3197955aa",
		"0x55d398326f99059ff775485246999027b31979zz",
	}
	for _, a := range invalid {
		if err := ValidateWalletAddress(a); err == nil {
			t.Fatalf("expected address %q to fail", a)
		}
	}
}

func TestUSDTMicrosRoundTrip(t *testing.T) {
	tests := []struct {
		usdt float64
		want int64
	}{
		{usdt: 0, want: 0},
		{usdt: 1, want: MicrosPerUSDT},
		{usdt: 19.99, want: 19_990_000},
		{usdt: 10_000, want: 10_000 * MicrosPerUSDT},
		{usdt: 0.000001, want: 1},
	}
	for _, tc := range tests {
		got := USDTToMicros(tc.usdt)
		if got != tc.want {
			t.Fatalf("usdt=%v got=%d want=%d", tc.usdt, got, tc.want)
		}
		back := MicrosToUSDT(got)
		if USDTToMicros(back) != tc.want {
			t.Fatalf("round trip drifted for %v", tc.usdt)
		}
	}
}

func TestApplyRateBps(t *testing.T) {
	tests := []struct {
		amount int64
		bps    int32
		want   int64
	}{
		// 1% per day on 100 USDT is exactly 1 USDT.
		{amount: 100 * MicrosPerUSDT, bps: 100, want: 1 * MicrosPerUSDT},
		{amount: 1_000 * MicrosPerUSDT, bps: 300, want: 30 * MicrosPerUSDT},
		// truncation, never rounding up
		{amount: 1, bps: 100, want: 0},
		{amount: 10_001, bps: 100, want: 100},
		{amount: 0, bps: 100, want: 0},
		{amount: -5 * MicrosPerUSDT, bps: 100, want: 0},
		{amount: 100 * MicrosPerUSDT, bps: 0, want: 0},
	}
	for _, tc := range tests {
		got := ApplyRateBps(tc.amount, tc.bps)
		if got != tc.want {
			t.Fatalf("amount=%d bps=%d got=%d want=%d", tc.amount, tc.bps, got, tc.want)
		}
	}
}
