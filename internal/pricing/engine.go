package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrEmptyCart is returned when no line item carries a positive quantity.
var ErrEmptyCart = errors.New("cart is empty")

// ErrInvalidDiscount indicates a structurally malformed discount (negative value, unknown kind).
var ErrInvalidDiscount = errors.New("invalid discount")

// ErrDiscountNotEligible indicates the pre-discount total did not meet the discount minimum.
var ErrDiscountNotEligible = errors.New("discount not eligible")

// DiscountKind enumerates the supported discount strategies.
type DiscountKind string

const (
	// DiscountPercentage applies a percentage of the pre-discount total.
	DiscountPercentage DiscountKind = "percentage"
	// DiscountFixed subtracts a fixed amount capped at the pre-discount total.
	DiscountFixed DiscountKind = "fixed"
)

// LineItem is one normalized cart entry used for pricing.
type LineItem struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	Qty          int32           `json:"qty"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	ImageURL     string          `json:"imageUrl,omitempty"`
	Available    bool            `json:"available"`
	StockLimit   *int32          `json:"stockLimit,omitempty"`
	PriceMissing bool            `json:"priceMissing,omitempty"`
	ExceedsStock bool            `json:"exceedsStock,omitempty"`
}

// Subtotal returns quantity times unit price for this line.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Qty)))
}

// Policy holds the shipping and tax parameters applied to every breakdown.
type Policy struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	TaxRatePercent        decimal.Decimal
}

// Discount carries the parameters of a code already looked up by the caller.
type Discount struct {
	Code          string
	Kind          DiscountKind
	Value         decimal.Decimal
	MinOrderTotal decimal.Decimal
}

// Breakdown is the priced decomposition of an order. It is a value: recompute,
// never patch, when cart contents or policy change.
type Breakdown struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	Shipping       decimal.Decimal `json:"shipping"`
	Tax            decimal.Decimal `json:"tax"`
	TaxRatePercent decimal.Decimal `json:"taxRatePercent"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	GrandTotal     decimal.Decimal `json:"grandTotal"`
}

var hundred = decimal.NewFromInt(100)

// round2 rounds half-up to two decimal places. Applied once per component,
// not per line item, so repeated lines cannot accumulate rounding drift.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ComputeBreakdown prices the normalized line items under the given policy and
// optional discount. Unavailable items are excluded from every component but are
// expected to stay in the caller's view for warnings. The computation is pure:
// identical inputs always yield an identical breakdown.
func ComputeBreakdown(items []LineItem, policy Policy, disc *Discount) (Breakdown, error) {
	priced := 0
	subtotal := decimal.Zero
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		priced++
		if !it.Available {
			continue
		}
		subtotal = subtotal.Add(it.Subtotal())
	}
	if priced == 0 {
		return Breakdown{}, ErrEmptyCart
	}

	shipping := policy.FlatShippingFee
	if subtotal.GreaterThanOrEqual(policy.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := round2(subtotal.Mul(policy.TaxRatePercent).Div(hundred))
	preDiscount := subtotal.Add(shipping).Add(tax)

	discountAmount := decimal.Zero
	if disc != nil {
		var err error
		discountAmount, err = DiscountAmount(*disc, preDiscount)
		if err != nil {
			return Breakdown{}, err
		}
	}

	grand := preDiscount.Sub(discountAmount)
	if grand.IsNegative() {
		grand = decimal.Zero
	}
	return Breakdown{
		Subtotal:       subtotal,
		Shipping:       shipping,
		Tax:            tax,
		TaxRatePercent: policy.TaxRatePercent,
		DiscountAmount: discountAmount,
		GrandTotal:     grand,
	}, nil
}

// DiscountAmount resolves the monetary value of a discount against the
// pre-discount total. The amount is always capped at that total.
func DiscountAmount(disc Discount, preDiscount decimal.Decimal) (decimal.Decimal, error) {
	if disc.Value.IsNegative() {
		return decimal.Zero, ErrInvalidDiscount
	}
	if preDiscount.LessThan(disc.MinOrderTotal) {
		return decimal.Zero, ErrDiscountNotEligible
	}
	switch DiscountKind(strings.ToLower(string(disc.Kind))) {
	case DiscountFixed:
		if disc.Value.GreaterThan(preDiscount) {
			return preDiscount, nil
		}
		return disc.Value, nil
	case DiscountPercentage:
		amount := round2(preDiscount.Mul(disc.Value).Div(hundred))
		if amount.GreaterThan(preDiscount) {
			amount = preDiscount
		}
		return amount, nil
	default:
		return decimal.Zero, ErrInvalidDiscount
	}
}
