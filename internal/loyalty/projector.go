package loyalty

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Snapshot is the member's current standing as read from the loyalty store.
type Snapshot struct {
	CurrentPoints         int64           `json:"currentPoints"`
	Tier                  string          `json:"tier"`
	PointsPerCurrencyUnit decimal.Decimal `json:"pointsPerCurrencyUnit"`
}

// Tier is one rank in the program, unlocked at Threshold cumulative points.
type Tier struct {
	Name      string `json:"name"`
	Threshold int64  `json:"threshold"`
}

// Reward is a redemption option gated by a point cost.
type Reward struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Points int64  `json:"points"`
}

// TierTable orders tiers and rewards for projection. Thresholds are cumulative
// points; the zero-threshold tier is the entry rank.
type TierTable struct {
	Tiers   []Tier
	Rewards []Reward
}

// Projection previews the member's standing after a hypothetical order. It is
// derived only; crediting the stored balance happens elsewhere, after payment
// confirmation.
type Projection struct {
	Tier                  string   `json:"tier"`
	PointsBalance         int64    `json:"pointsBalance"`
	PointsEarnedThisOrder int64    `json:"pointsEarnedThisOrder"`
	PointsToNextTier      int64    `json:"pointsToNextTier"`
	ProgressPercent       int      `json:"progressPercent"`
	RedeemableRewards     []Reward `json:"redeemableRewards"`
}

// DefaultTierTable mirrors the storefront's published program.
func DefaultTierTable() TierTable {
	return TierTable{
		Tiers: []Tier{
			{Name: "bronze", Threshold: 0},
			{Name: "silver", Threshold: 500},
			{Name: "gold", Threshold: 2000},
			{Name: "platinum", Threshold: 5000},
		},
		Rewards: []Reward{
			{ID: "free-drink", Name: "Free drink", Points: 150},
			{ID: "free-dessert", Name: "Free dessert", Points: 300},
			{ID: "ten-off", Name: "10.00 off next order", Points: 1000},
		},
	}
}

// Project derives the points earned by an order and the member's tier progress.
// Pure: it never mutates the snapshot or the stored balance.
func Project(grandTotal decimal.Decimal, snap Snapshot, table TierTable) Projection {
	earned := int64(0)
	if grandTotal.IsPositive() && snap.PointsPerCurrencyUnit.IsPositive() {
		// floor, never round up: points are granted on whole units only
		earned = grandTotal.Mul(snap.PointsPerCurrencyUnit).Floor().IntPart()
	}
	balance := snap.CurrentPoints + earned

	tiers := append([]Tier(nil), table.Tiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Threshold < tiers[j].Threshold })

	proj := Projection{
		Tier:                  snap.Tier,
		PointsBalance:         balance,
		PointsEarnedThisOrder: earned,
		RedeemableRewards:     redeemable(table.Rewards, balance),
	}
	if len(tiers) == 0 {
		proj.PointsToNextTier = 0
		proj.ProgressPercent = 100
		return proj
	}

	current := tiers[0]
	var next *Tier
	for i := range tiers {
		if balance >= tiers[i].Threshold {
			current = tiers[i]
			continue
		}
		next = &tiers[i]
		break
	}
	proj.Tier = current.Name
	if next == nil {
		proj.PointsToNextTier = 0
		proj.ProgressPercent = 100
		return proj
	}
	proj.PointsToNextTier = next.Threshold - balance
	proj.ProgressPercent = progressPercent(balance, next.Threshold)
	return proj
}

// TierFor returns the highest tier unlocked by the balance.
func (t TierTable) TierFor(balance int64) string {
	tiers := append([]Tier(nil), t.Tiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Threshold < tiers[j].Threshold })
	name := ""
	for _, tier := range tiers {
		if balance >= tier.Threshold {
			name = tier.Name
		}
	}
	return name
}

func progressPercent(balance, nextThreshold int64) int {
	if nextThreshold <= 0 {
		return 100
	}
	pct := int(balance * 100 / nextThreshold)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func redeemable(rewards []Reward, balance int64) []Reward {
	out := make([]Reward, 0, len(rewards))
	for _, r := range rewards {
		if r.Points > 0 && balance >= r.Points {
			out = append(out, r)
		}
	}
	return out
}
