package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func info(id, name, price string, available bool) *ProductInfo {
	return &ProductInfo{ID: id, Name: name, UnitPrice: dec(price), Available: available}
}

func TestNormalizeResolutionOrder(t *testing.T) {
	entries := []RawEntry{
		{ID: "e1", Qty: 1, Product: info("p1", "Resolved", "10.00", true), MenuItem: info("m1", "Menu", "99.00", true)},
		{ID: "e2", Qty: 2, MenuItem: info("m2", "Nasi Goreng", "35.00", true), Dish: info("d2", "Dish", "1.00", true)},
		{ID: "e3", Qty: 1, Dish: info("d3", "Legacy Dish", "20.00", true)},
	}
	items, report := Normalize(entries)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].ProductID != "p1" || items[0].Name != "Resolved" {
		t.Fatalf("entry 1 resolved to %q (%q), want resolved product payload", items[0].ProductID, items[0].Name)
	}
	if items[1].ProductID != "m2" {
		t.Fatalf("entry 2 resolved to %q, want menu item before legacy dish", items[1].ProductID)
	}
	if items[2].ProductID != "d3" {
		t.Fatalf("entry 3 resolved to %q, want legacy dish", items[2].ProductID)
	}
	if report.Unresolved != 0 {
		t.Fatalf("unexpected unresolved count %d", report.Unresolved)
	}
}

func TestNormalizeFallbackFields(t *testing.T) {
	price := dec("12.50")
	entries := []RawEntry{
		{ID: "e1", Qty: 1, FallbackName: "Chef Special", FallbackPrice: &price, FallbackImageURL: "cdn/x.png"},
	}
	items, report := Normalize(entries)
	if len(items) != 1 {
		t.Fatalf("expected fallback entry retained, got %d items", len(items))
	}
	it := items[0]
	if it.ProductID != "e1" || it.Name != "Chef Special" || !it.UnitPrice.Equal(price) || it.ImageURL != "cdn/x.png" {
		t.Fatalf("fallback fields not carried: %+v", it)
	}
	if it.PriceMissing {
		t.Fatal("fallback entry with price should not be flagged")
	}
	if report.PriceMissing != 0 {
		t.Fatalf("unexpected price-missing count %d", report.PriceMissing)
	}
}

func TestNormalizeMissingPriceRetained(t *testing.T) {
	entries := []RawEntry{
		{ID: "e1", Qty: 1, FallbackName: "Mystery"},
	}
	items, report := Normalize(entries)
	if len(items) != 1 {
		t.Fatal("entry with no resolvable price must be retained, not dropped")
	}
	if !items[0].UnitPrice.IsZero() || !items[0].PriceMissing {
		t.Fatalf("expected zero price with flag, got %+v", items[0])
	}
	if report.PriceMissing != 1 {
		t.Fatalf("price-missing count = %d, want 1", report.PriceMissing)
	}
}

func TestNormalizeNegativePriceFlagged(t *testing.T) {
	bad := info("m1", "Broken", "0", true)
	bad.UnitPrice = decimal.NewFromInt(-5)
	items, report := Normalize([]RawEntry{{ID: "e1", Qty: 1, MenuItem: bad}})
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if !items[0].UnitPrice.IsZero() || !items[0].PriceMissing {
		t.Fatalf("negative price should zero and flag: %+v", items[0])
	}
	if report.PriceMissing != 1 {
		t.Fatalf("price-missing count = %d, want 1", report.PriceMissing)
	}
}

func TestNormalizeUnidentifiedExcluded(t *testing.T) {
	price := dec("3.00")
	entries := []RawEntry{
		{Qty: 1, FallbackPrice: &price}, // no id anywhere
		{ID: "e2", Qty: 1, MenuItem: info("m2", "Kept", "5.00", true)},
	}
	items, report := Normalize(entries)
	if len(items) != 1 {
		t.Fatalf("expected only identifiable entries, got %d", len(items))
	}
	if report.Unresolved != 1 {
		t.Fatalf("unresolved count = %d, want 1", report.Unresolved)
	}
}

func TestNormalizeStockLimitFlagsNotClamps(t *testing.T) {
	limit := int32(2)
	ref := info("m1", "Sate", "15.00", true)
	ref.StockLimit = &limit
	items, report := Normalize([]RawEntry{{ID: "e1", Qty: 5, MenuItem: ref}})
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Qty != 5 {
		t.Fatalf("quantity clamped to %d; violations must be flagged, not clamped", items[0].Qty)
	}
	if !items[0].ExceedsStock {
		t.Fatal("expected ExceedsStock flag")
	}
	if report.OverStock != 1 {
		t.Fatalf("over-stock count = %d, want 1", report.OverStock)
	}
}
