package checkout

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/cart"
	"github.com/noah-isme/backend-resto/internal/discount"
	"github.com/noah-isme/backend-resto/internal/loyalty"
	"github.com/noah-isme/backend-resto/internal/order"
	"github.com/noah-isme/backend-resto/internal/pricing"
)

type stubCarts struct {
	entries []pricing.RawEntry
	rows    []cart.Item
	closed  []string
}

func (s *stubCarts) Entries(_ context.Context, cartID string) ([]pricing.RawEntry, []cart.Item, error) {
	return s.entries, s.rows, nil
}

func (s *stubCarts) Close(_ context.Context, cartID string) error {
	s.closed = append(s.closed, cartID)
	return nil
}

type stubResolver struct {
	rules map[string]discount.Rule
}

func (s *stubResolver) Resolve(_ context.Context, code string, _ *string, pre decimal.Decimal) (discount.Rule, error) {
	r, ok := s.rules[code]
	if !ok {
		return discount.Rule{}, discount.ErrNotFound
	}
	if pre.LessThan(r.MinOrderTotal) {
		return discount.Rule{}, discount.ErrMinimumNotMet
	}
	return r, nil
}

type stubLoyalty struct {
	snap loyalty.Snapshot
}

func (s *stubLoyalty) SnapshotFor(_ context.Context, userID string) (loyalty.Snapshot, error) {
	return s.snap, nil
}

type stubOrders struct {
	created []order.Order
}

func (s *stubOrders) CreateWithItems(_ context.Context, o order.Order, items []order.Item) (order.Order, error) {
	o.ID = "o-1"
	o.Items = items
	s.created = append(s.created, o)
	return o, nil
}

type stubQueue struct {
	confirmations []string
}

func (s *stubQueue) EnqueueOrderConfirmation(_ context.Context, orderID, userID string) error {
	s.confirmations = append(s.confirmations, orderID)
	return nil
}

type stubEmitter struct {
	topics []string
}

func (s *stubEmitter) Emit(_ context.Context, topic, _ string, _ any) error {
	s.topics = append(s.topics, topic)
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func entry(id, name, price string, qty int32) pricing.RawEntry {
	p := dec(price)
	return pricing.RawEntry{ID: id, Qty: qty, FallbackName: name, FallbackPrice: &p}
}

func newTestService(carts *stubCarts, disc *stubResolver, loy *stubLoyalty, orders *stubOrders) (*Service, *stubQueue, *stubEmitter) {
	if disc == nil {
		disc = &stubResolver{rules: map[string]discount.Rule{}}
	}
	if loy == nil {
		loy = &stubLoyalty{snap: loyalty.Snapshot{
			Tier:                  "bronze",
			PointsPerCurrencyUnit: dec("1"),
		}}
	}
	q := &stubQueue{}
	e := &stubEmitter{}
	return &Service{
		Carts:     carts,
		Discounts: disc,
		Loyalty:   loy,
		Orders:    orders,
		Queue:     q,
		Events:    e,
		Policy: pricing.Policy{
			FreeShippingThreshold: dec("1000"),
			FlatShippingFee:       dec("100"),
			TaxRatePercent:        dec("5"),
		},
		Tiers:    loyalty.DefaultTierTable(),
		Currency: "IDR",
		Log:      zerolog.Nop(),
	}, q, e
}

func TestPlaceOrderFreezesTotals(t *testing.T) {
	carts := &stubCarts{entries: []pricing.RawEntry{
		entry("row-1", "Nasi Goreng", "250.00", 3),
		entry("row-2", "Es Teh", "50.00", 10),
	}}
	orders := &stubOrders{}
	svc, q, e := newTestService(carts, nil, nil, orders)

	res, err := svc.PlaceOrder(context.Background(), Input{
		UserID:          "u-1",
		Cart:            cart.Cart{ID: "c-1"},
		FulfillmentMode: order.FulfillDelivery,
	})
	require.NoError(t, err)

	// 1250 subtotal, free shipping, 5% tax.
	o := res.Order
	require.True(t, o.Subtotal.Equal(dec("1250.00")), "subtotal %s", o.Subtotal)
	require.True(t, o.Shipping.IsZero())
	require.True(t, o.Tax.Equal(dec("62.50")))
	require.True(t, o.GrandTotal.Equal(dec("1312.50")))
	require.Equal(t, order.StatusPendingPayment, o.Status)
	require.Equal(t, int64(1312), o.PointsProjected)
	require.Len(t, o.Items, 2)

	require.Equal(t, []string{"c-1"}, carts.closed)
	require.Equal(t, []string{"o-1"}, q.confirmations)
	require.Equal(t, []string{"order.created"}, e.topics)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	svc, _, _ := newTestService(&stubCarts{}, nil, nil, &stubOrders{})

	_, err := svc.PlaceOrder(context.Background(), Input{UserID: "u-1", Cart: cart.Cart{ID: "c-1"}})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrderAppliesDiscount(t *testing.T) {
	carts := &stubCarts{entries: []pricing.RawEntry{entry("row-1", "Paket Hemat", "400.00", 1)}}
	disc := &stubResolver{rules: map[string]discount.Rule{
		"HEMAT50": {Code: "HEMAT50", Kind: pricing.DiscountPercentage, Value: dec("50")},
	}}
	orders := &stubOrders{}
	svc, _, _ := newTestService(carts, disc, nil, orders)

	code := "HEMAT50"
	res, err := svc.PlaceOrder(context.Background(), Input{
		UserID: "u-1",
		Cart:   cart.Cart{ID: "c-1", DiscountCode: &code},
	})
	require.NoError(t, err)

	// 400 + 100 shipping + 20 tax = 520, half off = 260.
	require.True(t, res.Order.DiscountAmount.Equal(dec("260.00")))
	require.True(t, res.Order.GrandTotal.Equal(dec("260.00")))
	require.NotNil(t, res.Order.DiscountCode)
	require.Empty(t, res.Warning)
}

func TestPlaceOrderDropsStaleDiscount(t *testing.T) {
	carts := &stubCarts{entries: []pricing.RawEntry{entry("row-1", "Soto", "100.00", 1)}}
	orders := &stubOrders{}
	svc, _, _ := newTestService(carts, &stubResolver{rules: map[string]discount.Rule{}}, nil, orders)

	code := "GONE"
	res, err := svc.PlaceOrder(context.Background(), Input{
		UserID: "u-1",
		Cart:   cart.Cart{ID: "c-1", DiscountCode: &code},
	})
	require.NoError(t, err)
	require.Nil(t, res.Order.DiscountCode)
	require.True(t, res.Order.DiscountAmount.IsZero())
	require.NotEmpty(t, res.Warning)
}

func TestPlaceOrderSkipsUnavailableLines(t *testing.T) {
	sold := pricing.RawEntry{
		ID:  "row-2",
		Qty: 1,
		MenuItem: &pricing.ProductInfo{
			ID:        "dish-2",
			Name:      "Habis",
			UnitPrice: dec("500.00"),
			Available: false,
		},
	}
	carts := &stubCarts{entries: []pricing.RawEntry{entry("row-1", "Mie Ayam", "80.00", 2), sold}}
	orders := &stubOrders{}
	svc, _, _ := newTestService(carts, nil, nil, orders)

	res, err := svc.PlaceOrder(context.Background(), Input{UserID: "u-1", Cart: cart.Cart{ID: "c-1"}})
	require.NoError(t, err)
	require.True(t, res.Order.Subtotal.Equal(dec("160.00")))
	require.Len(t, res.Order.Items, 1)
	require.Equal(t, "Mie Ayam", res.Order.Items[0].Name)
}

func TestPlaceOrderProjectsLoyalty(t *testing.T) {
	carts := &stubCarts{entries: []pricing.RawEntry{entry("row-1", "Paket Keluarga", "100.00", 1)}}
	loy := &stubLoyalty{snap: loyalty.Snapshot{
		CurrentPoints:         400,
		Tier:                  "bronze",
		PointsPerCurrencyUnit: dec("1"),
	}}
	orders := &stubOrders{}
	svc, _, _ := newTestService(carts, nil, loy, orders)

	res, err := svc.PlaceOrder(context.Background(), Input{UserID: "u-1", Cart: cart.Cart{ID: "c-1"}})
	require.NoError(t, err)
	// 100 + 100 shipping + 5 tax = 205 grand, 205 points earned, 605 balance.
	require.Equal(t, int64(205), res.Projection.PointsEarnedThisOrder)
	require.Equal(t, int64(605), res.Projection.PointsBalance)
	require.Equal(t, "silver", res.Projection.Tier)
}
