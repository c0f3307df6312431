package loyalty

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestProjectFloorsPoints(t *testing.T) {
	snap := Snapshot{CurrentPoints: 0, Tier: "bronze", PointsPerCurrencyUnit: dec("0.5")}
	p := Project(dec("99.99"), snap, DefaultTierTable())
	if p.PointsEarnedThisOrder != 49 {
		t.Fatalf("earned = %d, want floor(99.99*0.5) = 49", p.PointsEarnedThisOrder)
	}
}

func TestProjectZeroTotal(t *testing.T) {
	snap := Snapshot{CurrentPoints: 120, Tier: "bronze", PointsPerCurrencyUnit: dec("1")}
	p := Project(decimal.Zero, snap, DefaultTierTable())
	if p.PointsEarnedThisOrder != 0 {
		t.Fatalf("earned = %d, want 0", p.PointsEarnedThisOrder)
	}
	if p.PointsBalance != 120 {
		t.Fatalf("balance = %d, want unchanged 120", p.PointsBalance)
	}
}

func TestProjectTierProgress(t *testing.T) {
	snap := Snapshot{CurrentPoints: 100, Tier: "bronze", PointsPerCurrencyUnit: dec("1")}
	p := Project(dec("150"), snap, DefaultTierTable())
	if p.Tier != "bronze" {
		t.Fatalf("tier = %q, want bronze", p.Tier)
	}
	if p.PointsToNextTier != 250 {
		t.Fatalf("points to next = %d, want 500-250 = 250", p.PointsToNextTier)
	}
	if p.ProgressPercent != 50 {
		t.Fatalf("progress = %d, want 50", p.ProgressPercent)
	}
}

func TestProjectTierUpgradePreview(t *testing.T) {
	snap := Snapshot{CurrentPoints: 450, Tier: "bronze", PointsPerCurrencyUnit: dec("1")}
	p := Project(dec("100"), snap, DefaultTierTable())
	if p.Tier != "silver" {
		t.Fatalf("tier = %q, want silver after crossing 500", p.Tier)
	}
}

func TestProjectTopTier(t *testing.T) {
	snap := Snapshot{CurrentPoints: 9000, Tier: "platinum", PointsPerCurrencyUnit: dec("1")}
	p := Project(dec("10"), snap, DefaultTierTable())
	if p.PointsToNextTier != 0 {
		t.Fatalf("points to next = %d, want 0 at top tier", p.PointsToNextTier)
	}
	if p.ProgressPercent != 100 {
		t.Fatalf("progress = %d, want 100 at top tier", p.ProgressPercent)
	}
}

func TestProjectRedeemableRewards(t *testing.T) {
	snap := Snapshot{CurrentPoints: 200, Tier: "bronze", PointsPerCurrencyUnit: dec("1")}
	p := Project(dec("150"), snap, DefaultTierTable())
	// balance 350: free-drink (150) and free-dessert (300) qualify, ten-off (1000) does not
	if len(p.RedeemableRewards) != 2 {
		t.Fatalf("redeemable = %d rewards, want 2", len(p.RedeemableRewards))
	}
	for _, r := range p.RedeemableRewards {
		if r.Points > p.PointsBalance {
			t.Fatalf("reward %q costs %d over balance %d", r.ID, r.Points, p.PointsBalance)
		}
	}
}

func TestProjectPure(t *testing.T) {
	snap := Snapshot{CurrentPoints: 77, Tier: "bronze", PointsPerCurrencyUnit: dec("2")}
	before := snap
	first := Project(dec("33.33"), snap, DefaultTierTable())
	second := Project(dec("33.33"), snap, DefaultTierTable())
	if snap != before {
		t.Fatalf("snapshot mutated: %+v", snap)
	}
	if first.PointsEarnedThisOrder != second.PointsEarnedThisOrder || first.Tier != second.Tier {
		t.Fatalf("projection not deterministic: %+v vs %+v", first, second)
	}
}
