package checkout

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/cart"
	"github.com/noah-isme/backend-resto/internal/discount"
	"github.com/noah-isme/backend-resto/internal/loyalty"
	"github.com/noah-isme/backend-resto/internal/obs"
	"github.com/noah-isme/backend-resto/internal/order"
	"github.com/noah-isme/backend-resto/internal/pricing"
)

var ErrEmptyCart = errors.New("checkout: cart has no priceable items")

// CartSource reads and retires carts.
type CartSource interface {
	Entries(ctx context.Context, cartID string) ([]pricing.RawEntry, []cart.Item, error)
	Close(ctx context.Context, cartID string) error
}

// Resolver validates the applied discount code at order time.
type Resolver interface {
	Resolve(ctx context.Context, code string, userID *string, preDiscountTotal decimal.Decimal) (discount.Rule, error)
}

// LoyaltySource loads the member's current standing.
type LoyaltySource interface {
	SnapshotFor(ctx context.Context, userID string) (loyalty.Snapshot, error)
}

// OrderWriter persists the placed order.
type OrderWriter interface {
	CreateWithItems(ctx context.Context, o order.Order, items []order.Item) (order.Order, error)
}

// Enqueuer hands post-checkout work to the background worker.
type Enqueuer interface {
	EnqueueOrderConfirmation(ctx context.Context, orderID, userID string) error
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) error
}

// Service turns a cart into an order: normalize, price, project loyalty,
// persist, then fan out the side effects.
type Service struct {
	Carts     CartSource
	Discounts Resolver
	Loyalty   LoyaltySource
	Orders    OrderWriter
	Queue     Enqueuer
	Events    Emitter
	Metrics   *obs.CheckoutMetrics
	Policy    pricing.Policy
	Tiers     loyalty.TierTable
	Currency  string
	Log       zerolog.Logger
}

// Input is one place-order request after the handler resolved the cart.
type Input struct {
	UserID          string
	Cart            cart.Cart
	FulfillmentMode order.FulfillmentMode
	Address         json.RawMessage
	Notes           string
}

// Result is the placed order plus everything the confirmation screen shows.
type Result struct {
	Order      order.Order            `json:"order"`
	Report     pricing.SnapshotReport `json:"report"`
	Projection loyalty.Projection     `json:"loyalty"`
	Warning    string                 `json:"warning,omitempty"`
}

// PlaceOrder freezes the cart into an order. A discount code that no
// longer validates is dropped with a warning rather than blocking the
// purchase; an empty or fully unavailable cart is rejected.
func (s *Service) PlaceOrder(ctx context.Context, in Input) (Result, error) {
	entries, rows, err := s.Carts.Entries(ctx, in.Cart.ID)
	if err != nil {
		s.count("error")
		return Result{}, err
	}
	items, report := pricing.Normalize(entries)

	var (
		disc    *pricing.Discount
		code    *string
		warning string
	)
	if in.Cart.DiscountCode != nil {
		base, err := pricing.ComputeBreakdown(items, s.Policy, nil)
		if err != nil {
			s.count("empty_cart")
			return Result{}, ErrEmptyCart
		}
		pre := base.Subtotal.Add(base.Shipping).Add(base.Tax)
		rule, rerr := s.Discounts.Resolve(ctx, *in.Cart.DiscountCode, &in.UserID, pre)
		if rerr != nil {
			warning = "discount dropped: " + rerr.Error()
			s.Log.Warn().Err(rerr).Str("code", *in.Cart.DiscountCode).Msg("discount dropped at checkout")
		} else {
			disc = rule.PricingDiscount()
			code = &rule.Code
		}
	}

	breakdown, err := pricing.ComputeBreakdown(items, s.Policy, disc)
	if errors.Is(err, pricing.ErrEmptyCart) {
		s.count("empty_cart")
		return Result{}, ErrEmptyCart
	}
	if err != nil {
		s.count("error")
		return Result{}, err
	}

	snap, err := s.Loyalty.SnapshotFor(ctx, in.UserID)
	if err != nil {
		s.count("error")
		return Result{}, err
	}
	proj := loyalty.Project(breakdown.GrandTotal, snap, s.Tiers)

	o := order.Order{
		UserID:          in.UserID,
		CartID:          &in.Cart.ID,
		Status:          order.StatusPendingPayment,
		Currency:        s.Currency,
		FulfillmentMode: in.FulfillmentMode,
		Subtotal:        breakdown.Subtotal,
		Shipping:        breakdown.Shipping,
		Tax:             breakdown.Tax,
		TaxRatePercent:  breakdown.TaxRatePercent,
		DiscountAmount:  breakdown.DiscountAmount,
		GrandTotal:      breakdown.GrandTotal,
		DiscountCode:    code,
		PointsProjected: proj.PointsEarnedThisOrder,
		Address:         in.Address,
		Notes:           in.Notes,
	}
	stored, err := s.Orders.CreateWithItems(ctx, o, orderLines(items, rows))
	if err != nil {
		s.count("error")
		return Result{}, err
	}

	if err := s.Carts.Close(ctx, in.Cart.ID); err != nil {
		s.Log.Error().Err(err).Str("cart_id", in.Cart.ID).Msg("close cart after checkout")
	}
	if s.Events != nil {
		if err := s.Events.Emit(ctx, "order.created", stored.ID, stored); err != nil {
			s.Log.Error().Err(err).Str("order_id", stored.ID).Msg("emit order.created")
		}
	}
	if s.Queue != nil {
		if err := s.Queue.EnqueueOrderConfirmation(ctx, stored.ID, in.UserID); err != nil {
			s.Log.Error().Err(err).Str("order_id", stored.ID).Msg("enqueue order confirmation")
		}
	}
	s.count("success")

	return Result{Order: stored, Report: report, Projection: proj, Warning: warning}, nil
}

// orderLines freezes the priceable cart rows into order lines. Only lines
// that contributed to the subtotal are kept.
func orderLines(items []pricing.LineItem, rows []cart.Item) []order.Item {
	byMenu := map[string]*string{}
	for _, r := range rows {
		if r.MenuItemID != nil {
			byMenu[*r.MenuItemID] = r.MenuItemID
		}
	}
	out := make([]order.Item, 0, len(items))
	for _, li := range items {
		if !li.Available {
			continue
		}
		out = append(out, order.Item{
			MenuItemID: byMenu[li.ProductID],
			Name:       li.Name,
			Qty:        li.Qty,
			UnitPrice:  li.UnitPrice,
			ImageURL:   li.ImageURL,
		})
	}
	return out
}

func (s *Service) count(result string) {
	if s.Metrics != nil {
		s.Metrics.Orders.WithLabelValues(result).Inc()
	}
}
