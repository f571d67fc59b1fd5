package ledger

import "testing"

func TestPackageCatalogShape(t *testing.T) {
	pkgs := Packages()
	if len(pkgs) != 5 {
		t.Fatalf("expected 5 packages, got %d", len(pkgs))
	}
	for i, p := range pkgs {
		if p.ID != i+1 {
			t.Fatalf("packages out of order: index %d has id %d", i, p.ID)
		}
		if p.MinMicros <= 0 || p.MaxMicros <= p.MinMicros {
			t.Fatalf("package %d has bad bounds [%d, %d]", p.ID, p.MinMicros, p.MaxMicros)
		}
		if p.DailyRateBps <= 0 || p.DurationDays <= 0 {
			t.Fatalf("package %d has bad rate/duration", p.ID)
		}
	}

	if _, ok := LookupPackage(0); ok {
		t.Fatalf("package 0 should not exist")
	}
	if _, ok := LookupPackage(6); ok {
		t.Fatalf("package 6 should not exist")
	}
}

func TestPackageBounds(t *testing.T) {
	starter, ok := LookupPackage(1)
	if !ok {
		t.Fatalf("starter package missing")
	}
	if starter.MinMicros != 20*MicrosPerUSDT || starter.MaxMicros != 300*MicrosPerUSDT {
		t.Fatalf("starter bounds [%d, %d]", starter.MinMicros, starter.MaxMicros)
	}
	vip, ok := LookupPackage(5)
	if !ok {
		t.Fatalf("vip package missing")
	}
	if vip.MaxMicros != 10_000*MicrosPerUSDT {
		t.Fatalf("vip max %d", vip.MaxMicros)
	}
}

func TestReferralBonusBps(t *testing.T) {
	want := map[int]int32{1: 1_000, 2: 700, 3: 400, 4: 200, 5: 100}
	for level, bps := range want {
		if got := ReferralBonusBps(level); got != bps {
			t.Fatalf("level %d got %d want %d", level, got, bps)
		}
	}
	if got := ReferralBonusBps(6); got != 0 {
		t.Fatalf("level 6 must pay nothing, got %d", got)
	}
	if got := ReferralBonusBps(0); got != 0 {
		t.Fatalf("level 0 must pay nothing, got %d", got)
	}
}

func TestBonusSchedule(t *testing.T) {
	deposit := int64(1_000) * MicrosPerUSDT
	got := BonusSchedule(deposit)
	want := []int64{
		100 * MicrosPerUSDT, // 10%
		70 * MicrosPerUSDT,  // 7%
		40 * MicrosPerUSDT,  // 4%
		20 * MicrosPerUSDT,  // 2%
		10 * MicrosPerUSDT,  // 1%
	}
	if len(got) != len(want) {
		t.Fatalf("schedule length %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("level %d got %d want %d", i+1, got[i], want[i])
		}
	}
}
