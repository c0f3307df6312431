package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/discount"
	"github.com/noah-isme/backend-resto/internal/menu"
	"github.com/noah-isme/backend-resto/internal/pricing"
)

var (
	ErrNotFound   = errors.New("cart: not found")
	ErrForbidden  = errors.New("cart: not owned by caller")
	ErrInvalidQty = errors.New("cart: quantity must be at least 1")
	ErrEmptyAdd   = errors.New("cart: item needs a menu item id or a name")
)

// Querier is the storage surface the service needs. *Store satisfies it.
type Querier interface {
	GetByID(ctx context.Context, id string) (Cart, error)
	GetActiveByUser(ctx context.Context, userID string) (Cart, error)
	GetActiveByAnon(ctx context.Context, anonID string) (Cart, error)
	Create(ctx context.Context, userID, anonID *string, expiresAt time.Time) (Cart, error)
	Touch(ctx context.Context, id string, expiresAt time.Time) error
	SetDiscountCode(ctx context.Context, id string, code *string) error
	TransferToUser(ctx context.Context, id, userID string) error

	ListItems(ctx context.Context, cartID string) ([]Item, error)
	GetItemByID(ctx context.Context, id string) (Item, error)
	FindItemByMenuItem(ctx context.Context, cartID, menuItemID string) (Item, error)
	CreateItem(ctx context.Context, it Item) (Item, error)
	UpdateItemQty(ctx context.Context, id string, qty int32) error
	DeleteItem(ctx context.Context, cartID, itemID string) error
}

// Hydrator resolves menu item ids to their current menu rows.
type Hydrator interface {
	Hydrate(ctx context.Context, ids []string) (map[string]menu.Item, error)
}

// Resolver checks a discount code against the caller and the cart total.
type Resolver interface {
	Resolve(ctx context.Context, code string, userID *string, preDiscountTotal decimal.Decimal) (discount.Rule, error)
}

// Service owns cart lifecycle and quoting.
type Service struct {
	Q         Querier
	Menu      Hydrator
	Discounts Resolver
	Policy    pricing.Policy
	TTL       time.Duration
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Ensure returns the caller's active cart, creating one when none exists.
// Logged-in callers get their user cart; guests are keyed by session id.
// Every call slides the expiry forward.
func (s *Service) Ensure(ctx context.Context, userID, anonID *string) (Cart, error) {
	var (
		c   Cart
		err error
	)
	switch {
	case userID != nil:
		c, err = s.Q.GetActiveByUser(ctx, *userID)
	case anonID != nil:
		c, err = s.Q.GetActiveByAnon(ctx, *anonID)
	default:
		return Cart{}, ErrNotFound
	}
	expires := s.now().Add(s.TTL)
	if errors.Is(err, ErrNotFound) {
		return s.Q.Create(ctx, userID, anonID, expires)
	}
	if err != nil {
		return Cart{}, err
	}
	if err := s.Q.Touch(ctx, c.ID, expires); err != nil {
		return Cart{}, err
	}
	c.ExpiresAt = expires
	return c, nil
}

// Owns reports whether the cart belongs to the caller.
func Owns(c Cart, userID, anonID *string) bool {
	if userID != nil && c.UserID != nil && *c.UserID == *userID {
		return true
	}
	if anonID != nil && c.AnonID != nil && *c.AnonID == *anonID {
		return true
	}
	return false
}

// AddItemInput describes one add-to-cart request. MenuItemID references a
// live dish; Name/UnitPrice are the embedded snapshot for off-menu rows.
type AddItemInput struct {
	MenuItemID *string
	Name       string
	UnitPrice  *decimal.Decimal
	ImageURL   string
	Qty        int32
}

// AddItem appends a row to the cart, merging quantities when the same dish
// is already present. The current menu name and price are captured on the
// row so it survives later menu edits.
func (s *Service) AddItem(ctx context.Context, cartID string, in AddItemInput) (Item, error) {
	if in.Qty < 1 {
		return Item{}, ErrInvalidQty
	}
	it := Item{
		CartID:     cartID,
		MenuItemID: in.MenuItemID,
		Name:       strings.TrimSpace(in.Name),
		UnitPrice:  in.UnitPrice,
		ImageURL:   in.ImageURL,
		Qty:        in.Qty,
	}
	if in.MenuItemID != nil {
		hydrated, err := s.Menu.Hydrate(ctx, []string{*in.MenuItemID})
		if err != nil {
			return Item{}, err
		}
		if m, ok := hydrated[*in.MenuItemID]; ok {
			price := m.Price
			it.Name = m.Name
			it.UnitPrice = &price
			it.ImageURL = m.ImageURL
		}
		existing, err := s.Q.FindItemByMenuItem(ctx, cartID, *in.MenuItemID)
		if err == nil {
			qty := existing.Qty + in.Qty
			if err := s.Q.UpdateItemQty(ctx, existing.ID, qty); err != nil {
				return Item{}, err
			}
			existing.Qty = qty
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Item{}, err
		}
	}
	if it.Name == "" {
		return Item{}, ErrEmptyAdd
	}
	return s.Q.CreateItem(ctx, it)
}

// UpdateQty sets a row's quantity. Quantity zero removes the row.
func (s *Service) UpdateQty(ctx context.Context, cartID, itemID string, qty int32) error {
	if qty < 0 {
		return ErrInvalidQty
	}
	it, err := s.Q.GetItemByID(ctx, itemID)
	if err != nil {
		return err
	}
	if it.CartID != cartID {
		return ErrNotFound
	}
	if qty == 0 {
		return s.Q.DeleteItem(ctx, cartID, itemID)
	}
	return s.Q.UpdateItemQty(ctx, itemID, qty)
}

// RemoveItem deletes a row from the cart.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID string) error {
	return s.Q.DeleteItem(ctx, cartID, itemID)
}

// ApplyDiscount validates a code against the cart's current pre-discount
// total and stores it on the cart.
func (s *Service) ApplyDiscount(ctx context.Context, c Cart, code string) error {
	canonical := discount.CanonicalCode(code)
	quote, err := s.Quote(ctx, Cart{ID: c.ID})
	if err != nil {
		return err
	}
	pre := quote.Breakdown.Subtotal.Add(quote.Breakdown.Shipping).Add(quote.Breakdown.Tax)
	if _, err := s.Discounts.Resolve(ctx, canonical, c.UserID, pre); err != nil {
		return err
	}
	return s.Q.SetDiscountCode(ctx, c.ID, &canonical)
}

// RemoveDiscount clears the applied code.
func (s *Service) RemoveDiscount(ctx context.Context, cartID string) error {
	return s.Q.SetDiscountCode(ctx, cartID, nil)
}

// Merge folds a guest cart into the user's cart after login. Quantities of
// matching dishes are summed; the guest cart is expired once drained.
func (s *Service) Merge(ctx context.Context, anonID, userID string) (Cart, error) {
	guest, err := s.Q.GetActiveByAnon(ctx, anonID)
	if errors.Is(err, ErrNotFound) {
		uid := userID
		return s.Ensure(ctx, &uid, nil)
	}
	if err != nil {
		return Cart{}, err
	}
	target, err := s.Q.GetActiveByUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		if err := s.Q.TransferToUser(ctx, guest.ID, userID); err != nil {
			return Cart{}, err
		}
		guest.UserID = &userID
		guest.AnonID = nil
		return guest, nil
	}
	if err != nil {
		return Cart{}, err
	}
	items, err := s.Q.ListItems(ctx, guest.ID)
	if err != nil {
		return Cart{}, err
	}
	for _, it := range items {
		if _, err := s.AddItem(ctx, target.ID, AddItemInput{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			ImageURL:   it.ImageURL,
			Qty:        it.Qty,
		}); err != nil {
			return Cart{}, err
		}
	}
	if err := s.Q.Touch(ctx, guest.ID, s.now()); err != nil {
		return Cart{}, err
	}
	return target, nil
}

// Close retires a cart after checkout: the code is cleared and the expiry
// is pulled back so Ensure starts a fresh cart next time.
func (s *Service) Close(ctx context.Context, cartID string) error {
	if err := s.Q.SetDiscountCode(ctx, cartID, nil); err != nil {
		return err
	}
	return s.Q.Touch(ctx, cartID, s.now())
}

// Entries loads the cart rows and hydrates them into raw pricing entries.
func (s *Service) Entries(ctx context.Context, cartID string) ([]pricing.RawEntry, []Item, error) {
	items, err := s.Q.ListItems(ctx, cartID)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.MenuItemID != nil {
			ids = append(ids, *it.MenuItemID)
		}
	}
	var hydrated map[string]menu.Item
	if len(ids) > 0 {
		hydrated, err = s.Menu.Hydrate(ctx, ids)
		if err != nil {
			return nil, nil, err
		}
	}
	entries := make([]pricing.RawEntry, 0, len(items))
	for _, it := range items {
		e := pricing.RawEntry{
			ID:               it.ID,
			Qty:              it.Qty,
			FallbackName:     it.Name,
			FallbackPrice:    it.UnitPrice,
			FallbackImageURL: it.ImageURL,
		}
		if it.MenuItemID != nil {
			if m, ok := hydrated[*it.MenuItemID]; ok {
				e.MenuItem = &pricing.ProductInfo{
					ID:         m.ID,
					Name:       m.Name,
					UnitPrice:  m.Price,
					ImageURL:   m.ImageURL,
					Available:  m.IsAvailable,
					StockLimit: m.StockLimit,
				}
			} else {
				e.ID = *it.MenuItemID
			}
		}
		entries = append(entries, e)
	}
	return entries, items, nil
}

// Quote is a priced view of a cart.
type Quote struct {
	Items     []pricing.LineItem     `json:"items"`
	Report    pricing.SnapshotReport `json:"report"`
	Breakdown pricing.Breakdown      `json:"breakdown"`
	Discount  *discount.Rule         `json:"discount,omitempty"`
	Warning   string                 `json:"warning,omitempty"`
}

// Quote normalizes the cart and prices it under the active policy. A code
// that no longer validates does not fail the quote: it is dropped and
// surfaced as a warning so the storefront can tell the customer. An empty
// cart quotes as all zeros; only checkout treats emptiness as an error.
func (s *Service) Quote(ctx context.Context, c Cart) (Quote, error) {
	entries, _, err := s.Entries(ctx, c.ID)
	if err != nil {
		return Quote{}, err
	}
	items, report := pricing.Normalize(entries)
	q := Quote{Items: items, Report: report}

	var disc *pricing.Discount
	if c.DiscountCode != nil {
		base, err := pricing.ComputeBreakdown(items, s.Policy, nil)
		if errors.Is(err, pricing.ErrEmptyCart) {
			return q, nil
		}
		if err != nil {
			return Quote{}, err
		}
		pre := base.Subtotal.Add(base.Shipping).Add(base.Tax)
		rule, rerr := s.Discounts.Resolve(ctx, *c.DiscountCode, c.UserID, pre)
		if rerr != nil {
			q.Warning = "discount no longer applies: " + rerr.Error()
		} else {
			disc = rule.PricingDiscount()
			q.Discount = &rule
		}
	}
	q.Breakdown, err = pricing.ComputeBreakdown(items, s.Policy, disc)
	if errors.Is(err, pricing.ErrEmptyCart) {
		return q, nil
	}
	if err != nil {
		return Quote{}, err
	}
	return q, nil
}
