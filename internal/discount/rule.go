package discount

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/pricing"
)

var (
	// ErrNotFound is returned when the code does not exist.
	ErrNotFound = errors.New("discount code not found")
	// ErrMalformed indicates a structurally invalid rule (negative value, unknown kind).
	ErrMalformed = errors.New("discount code malformed")
	// ErrInactive is returned before the validity window opens.
	ErrInactive = errors.New("discount code not active yet")
	// ErrExpired is returned after the validity window closes.
	ErrExpired = errors.New("discount code expired")
	// ErrUsageLimitReached indicates the global quota is exhausted.
	ErrUsageLimitReached = errors.New("discount code usage limit reached")
	// ErrPerUserLimitReached indicates the caller exhausted their allowance.
	ErrPerUserLimitReached = errors.New("discount code per-user limit reached")
	// ErrMinimumNotMet indicates the running total is below the code minimum.
	ErrMinimumNotMet = errors.New("discount code minimum order total not met")
)

// Rule captures the stored constraints of a discount code. Codes are matched
// case-insensitively; Code always holds the canonical upper-case form.
type Rule struct {
	Code          string
	Kind          pricing.DiscountKind
	Value         decimal.Decimal
	MinOrderTotal decimal.Decimal
	ValidFrom     *time.Time
	ValidTo       *time.Time
	UsageLimit    *int32
	UsedCount     int32
	PerUserLimit  *int32
}

// CanonicalCode normalizes user input for case-insensitive matching.
func CanonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the rule against the instant and the pre-discount order
// total. perUserUsed is the caller's prior redemption count (-1 skips the
// per-user check for guests).
func (r Rule) Validate(now time.Time, preDiscountTotal decimal.Decimal, perUserUsed int32, defaultPerUserLimit int32) error {
	if r.Value.IsNegative() {
		return ErrMalformed
	}
	switch r.Kind {
	case pricing.DiscountPercentage, pricing.DiscountFixed:
	default:
		return ErrMalformed
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrInactive
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrExpired
	}
	if r.UsageLimit != nil && *r.UsageLimit >= 0 && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	if perUserUsed >= 0 {
		limit := defaultPerUserLimit
		if r.PerUserLimit != nil {
			limit = *r.PerUserLimit
		}
		if limit > 0 && perUserUsed >= limit {
			return ErrPerUserLimitReached
		}
	}
	if preDiscountTotal.LessThan(r.MinOrderTotal) {
		return ErrMinimumNotMet
	}
	return nil
}

// PricingDiscount converts a validated rule into the pricing engine's input.
func (r Rule) PricingDiscount() *pricing.Discount {
	return &pricing.Discount{
		Code:          r.Code,
		Kind:          r.Kind,
		Value:         r.Value,
		MinOrderTotal: r.MinOrderTotal,
	}
}
