package pricing

import (
	"errors"
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

func defaultPolicy() Policy {
	return Policy{
		FreeShippingThreshold: dec("1000"),
		FlatShippingFee:       dec("100"),
		TaxRatePercent:        dec("5"),
	}
}

func line(price string, qty int32) LineItem {
	return LineItem{ProductID: "p", Qty: qty, UnitPrice: dec(price), Available: true}
}

func TestComputeFreeShipping(t *testing.T) {
	items := []LineItem{line("500.00", 2), line("250.00", 1)}
	b, err := ComputeBreakdown(items, defaultPolicy(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Subtotal.Equal(dec("1250.00")) {
		t.Fatalf("subtotal = %s, want 1250.00", b.Subtotal)
	}
	if !b.Shipping.IsZero() {
		t.Fatalf("shipping = %s, want 0", b.Shipping)
	}
	if !b.Tax.Equal(dec("62.50")) {
		t.Fatalf("tax = %s, want 62.50", b.Tax)
	}
	if !b.GrandTotal.Equal(dec("1312.50")) {
		t.Fatalf("grand total = %s, want 1312.50", b.GrandTotal)
	}
}

func TestComputeFlatShipping(t *testing.T) {
	items := []LineItem{line("400.00", 1)}
	b, err := ComputeBreakdown(items, defaultPolicy(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Shipping.Equal(dec("100")) {
		t.Fatalf("shipping = %s, want 100", b.Shipping)
	}
	if !b.Tax.Equal(dec("20.00")) {
		t.Fatalf("tax = %s, want 20.00", b.Tax)
	}
	if !b.GrandTotal.Equal(dec("520.00")) {
		t.Fatalf("grand total = %s, want 520.00", b.GrandTotal)
	}
}

func TestComputePercentageDiscount(t *testing.T) {
	items := []LineItem{line("400.00", 1)}
	disc := &Discount{Code: "HALF", Kind: DiscountPercentage, Value: dec("50")}
	b, err := ComputeBreakdown(items, defaultPolicy(), disc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.DiscountAmount.Equal(dec("260.00")) {
		t.Fatalf("discount = %s, want 260.00", b.DiscountAmount)
	}
	if !b.GrandTotal.Equal(dec("260.00")) {
		t.Fatalf("grand total = %s, want 260.00", b.GrandTotal)
	}
}

func TestComputeFixedDiscountClamps(t *testing.T) {
	items := []LineItem{line("200.00", 1)}
	// pre-discount total: 200 + 100 shipping + 10 tax = 310
	disc := &Discount{Code: "BIG", Kind: DiscountFixed, Value: dec("1000.00")}
	b, err := ComputeBreakdown(items, defaultPolicy(), disc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.DiscountAmount.Equal(dec("310.00")) {
		t.Fatalf("discount = %s, want 310.00", b.DiscountAmount)
	}
	if !b.GrandTotal.IsZero() {
		t.Fatalf("grand total = %s, want 0", b.GrandTotal)
	}
}

func TestComputeEmptyCart(t *testing.T) {
	_, err := ComputeBreakdown(nil, defaultPolicy(), nil)
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	_, err = ComputeBreakdown([]LineItem{line("10.00", 0)}, defaultPolicy(), nil)
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart for zero quantities, got %v", err)
	}
}

func TestComputeDiscountNotEligible(t *testing.T) {
	items := []LineItem{line("400.00", 1)}
	disc := &Discount{Code: "VIP", Kind: DiscountFixed, Value: dec("50"), MinOrderTotal: dec("600")}
	_, err := ComputeBreakdown(items, defaultPolicy(), disc)
	if !errors.Is(err, ErrDiscountNotEligible) {
		t.Fatalf("expected ErrDiscountNotEligible, got %v", err)
	}
}

func TestComputeInvalidDiscount(t *testing.T) {
	items := []LineItem{line("400.00", 1)}
	for _, disc := range []*Discount{
		{Code: "NEG", Kind: DiscountFixed, Value: dec("-1")},
		{Code: "WHAT", Kind: DiscountKind("bogo"), Value: dec("10")},
	} {
		if _, err := ComputeBreakdown(items, defaultPolicy(), disc); !errors.Is(err, ErrInvalidDiscount) {
			t.Fatalf("discount %q: expected ErrInvalidDiscount, got %v", disc.Code, err)
		}
	}
}

func TestComputeShippingThresholdBoundary(t *testing.T) {
	exact := []LineItem{line("1000.00", 1)}
	b, err := ComputeBreakdown(exact, defaultPolicy(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Shipping.IsZero() {
		t.Fatalf("shipping at threshold = %s, want 0", b.Shipping)
	}

	below := []LineItem{line("999.99", 1)}
	b, err = ComputeBreakdown(below, defaultPolicy(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Shipping.Equal(dec("100")) {
		t.Fatalf("shipping below threshold = %s, want 100", b.Shipping)
	}
}

func TestComputeExcludesUnavailable(t *testing.T) {
	items := []LineItem{
		line("400.00", 1),
		{ProductID: "gone", Qty: 2, UnitPrice: dec("999"), Available: false},
	}
	b, err := ComputeBreakdown(items, defaultPolicy(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Subtotal.Equal(dec("400.00")) {
		t.Fatalf("subtotal = %s, want 400.00", b.Subtotal)
	}
}

func TestComputeIdempotent(t *testing.T) {
	items := []LineItem{line("123.45", 3), line("0.99", 7)}
	disc := &Discount{Code: "TEN", Kind: DiscountPercentage, Value: dec("10")}
	first, err := ComputeBreakdown(items, defaultPolicy(), disc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ComputeBreakdown(items, defaultPolicy(), disc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Subtotal.String() != second.Subtotal.String() ||
		first.Tax.String() != second.Tax.String() ||
		first.DiscountAmount.String() != second.DiscountAmount.String() ||
		first.GrandTotal.String() != second.GrandTotal.String() {
		t.Fatalf("breakdowns differ: %+v vs %+v", first, second)
	}
}

func TestComputeQuantityMonotonic(t *testing.T) {
	// Hold the shipping regime fixed: crossing the free-shipping threshold is
	// the one case where a bigger cart legally costs less overall.
	policy := Policy{
		FreeShippingThreshold: dec("1000000"),
		FlatShippingFee:       dec("100"),
		TaxRatePercent:        dec("5"),
	}
	disc := &Discount{Code: "TEN", Kind: DiscountPercentage, Value: dec("10")}
	prevSubtotal := decimal.Zero
	prevGrand := decimal.Zero
	for qty := int32(1); qty <= 50; qty++ {
		items := []LineItem{line("19.99", qty), line("5.25", 2)}
		b, err := ComputeBreakdown(items, policy, disc)
		if err != nil {
			t.Fatalf("qty %d: unexpected error: %v", qty, err)
		}
		if b.Subtotal.LessThan(prevSubtotal) {
			t.Fatalf("qty %d: subtotal decreased from %s to %s", qty, prevSubtotal, b.Subtotal)
		}
		if b.GrandTotal.LessThan(prevGrand) {
			t.Fatalf("qty %d: grand total decreased from %s to %s", qty, prevGrand, b.GrandTotal)
		}
		if b.Subtotal.IsNegative() || b.GrandTotal.IsNegative() {
			t.Fatalf("qty %d: negative totals: %+v", qty, b)
		}
		prevSubtotal, prevGrand = b.Subtotal, b.GrandTotal
	}
}

func TestComputeDiscountNeverNegative(t *testing.T) {
	items := []LineItem{line("260.00", 1)}
	for _, value := range []string{"0", "50", "100", "250", "100000"} {
		for _, kind := range []DiscountKind{DiscountFixed, DiscountPercentage} {
			disc := &Discount{Code: "X", Kind: kind, Value: dec(value)}
			b, err := ComputeBreakdown(items, defaultPolicy(), disc)
			if err != nil {
				t.Fatalf("%s %s: unexpected error: %v", kind, value, err)
			}
			if b.GrandTotal.IsNegative() {
				t.Fatalf("%s %s: grand total went negative: %s", kind, value, b.GrandTotal)
			}
		}
	}
}

func TestComputeTaxRoundsHalfUp(t *testing.T) {
	// 10.10 * 5% = 0.505 -> 0.51
	items := []LineItem{line("10.10", 1)}
	b, err := ComputeBreakdown(items, defaultPolicy(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Tax.Equal(dec("0.51")) {
		t.Fatalf("tax = %s, want 0.51", b.Tax)
	}
}
