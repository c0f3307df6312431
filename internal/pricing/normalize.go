package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ProductInfo is a hydrated product reference attached to a raw cart entry.
type ProductInfo struct {
	ID         string
	Name       string
	UnitPrice  decimal.Decimal
	ImageURL   string
	Available  bool
	StockLimit *int32
}

// RawEntry is a cart row before normalization. A single entry may reference its
// product through the resolved payload, a menu item relation, a legacy dish
// relation, or only the embedded fallback fields captured when it was added.
type RawEntry struct {
	ID       string
	Qty      int32
	Product  *ProductInfo
	MenuItem *ProductInfo
	Dish     *ProductInfo

	FallbackName     string
	FallbackPrice    *decimal.Decimal
	FallbackImageURL string
}

// SnapshotReport summarizes what normalization could not fully resolve.
// Nothing in it is fatal: callers surface warnings instead of losing the cart.
type SnapshotReport struct {
	Unresolved   int `json:"unresolved"`
	PriceMissing int `json:"priceMissing"`
	OverStock    int `json:"overStock"`
}

// Normalize flattens heterogeneous cart entries into the single line-item shape
// the pricing engine consumes. Resolution order per entry: resolved product
// payload, then the first matching relation (menu item before legacy dish),
// then the embedded fallback fields. Entries without any stable product
// identifier are dropped and counted; entries without a resolvable price keep
// a zero unit price and are flagged rather than dropped.
func Normalize(entries []RawEntry) ([]LineItem, SnapshotReport) {
	items := make([]LineItem, 0, len(entries))
	var report SnapshotReport
	for _, e := range entries {
		ref := resolveRef(e)
		if ref == nil {
			if strings.TrimSpace(e.ID) == "" {
				report.Unresolved++
				continue
			}
			item := LineItem{
				ProductID: e.ID,
				Name:      e.FallbackName,
				Qty:       e.Qty,
				ImageURL:  e.FallbackImageURL,
				Available: true,
			}
			if e.FallbackPrice != nil && !e.FallbackPrice.IsNegative() {
				item.UnitPrice = *e.FallbackPrice
			} else {
				item.UnitPrice = decimal.Zero
				item.PriceMissing = true
				report.PriceMissing++
			}
			items = append(items, item)
			continue
		}
		if strings.TrimSpace(ref.ID) == "" {
			report.Unresolved++
			continue
		}
		item := LineItem{
			ProductID:  ref.ID,
			Name:       ref.Name,
			Qty:        e.Qty,
			UnitPrice:  ref.UnitPrice,
			ImageURL:   ref.ImageURL,
			Available:  ref.Available,
			StockLimit: ref.StockLimit,
		}
		if item.Name == "" {
			item.Name = e.FallbackName
		}
		if item.ImageURL == "" {
			item.ImageURL = e.FallbackImageURL
		}
		if item.UnitPrice.IsNegative() {
			item.UnitPrice = decimal.Zero
			item.PriceMissing = true
			report.PriceMissing++
		}
		if ref.StockLimit != nil && e.Qty > *ref.StockLimit {
			item.ExceedsStock = true
			report.OverStock++
		}
		items = append(items, item)
	}
	return items, report
}

func resolveRef(e RawEntry) *ProductInfo {
	switch {
	case e.Product != nil:
		return e.Product
	case e.MenuItem != nil:
		return e.MenuItem
	case e.Dish != nil:
		return e.Dish
	default:
		return nil
	}
}
