package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Status is the order lifecycle state. Values are stored uppercase.
type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusSettlement     Status = "SETTLEMENT"
	StatusPreparing      Status = "PREPARING"
	StatusCompleted      Status = "COMPLETED"
	StatusCancelled      Status = "CANCELLED"
)

// FulfillmentMode is how the order leaves the kitchen.
type FulfillmentMode string

const (
	FulfillDelivery FulfillmentMode = "delivery"
	FulfillPickup   FulfillmentMode = "pickup"
)

// Order is one placed order with its frozen totals.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	CartID          *string         `json:"cartId,omitempty"`
	Status          Status          `json:"status"`
	Currency        string          `json:"currency"`
	FulfillmentMode FulfillmentMode `json:"fulfillmentMode"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Shipping        decimal.Decimal `json:"shipping"`
	Tax             decimal.Decimal `json:"tax"`
	TaxRatePercent  decimal.Decimal `json:"taxRatePercent"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	GrandTotal      decimal.Decimal `json:"grandTotal"`
	DiscountCode    *string         `json:"discountCode,omitempty"`
	PointsProjected int64           `json:"pointsProjected"`
	Address         json.RawMessage `json:"address,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	Items           []Item          `json:"items,omitempty"`
}

// Item is one frozen order line.
type Item struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"orderId"`
	MenuItemID *string         `json:"menuItemId,omitempty"`
	Name       string          `json:"name"`
	Qty        int32           `json:"qty"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	ImageURL   string          `json:"imageUrl,omitempty"`
}

// Feedback is one customer rating of a completed order.
type Feedback struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"orderId"`
	UserID    string    `json:"userId"`
	Rating    int32     `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReturnRequest is a refund request against a settled order.
type ReturnRequest struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"orderId"`
	UserID    string    `json:"userId"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store runs order queries against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

const orderColumns = `id::text, user_id::text, cart_id::text, status, currency, fulfillment_mode,
	subtotal, shipping, tax, tax_rate_percent, discount_amount, grand_total,
	discount_code, points_projected, address, notes, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o     Order
		notes *string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.CartID, &o.Status, &o.Currency, &o.FulfillmentMode,
		&o.Subtotal, &o.Shipping, &o.Tax, &o.TaxRatePercent, &o.DiscountAmount, &o.GrandTotal,
		&o.DiscountCode, &o.PointsProjected, &o.Address, &notes, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if notes != nil {
		o.Notes = *notes
	}
	return o, err
}

// Create inserts the order header inside the given transaction.
func (s *Store) Create(ctx context.Context, tx pgx.Tx, o Order) (Order, error) {
	var notes *string
	if o.Notes != "" {
		notes = &o.Notes
	}
	return scanOrder(tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, cart_id, status, currency, fulfillment_mode,
			subtotal, shipping, tax, tax_rate_percent, discount_amount, grand_total,
			discount_code, points_projected, address, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+orderColumns,
		o.UserID, o.CartID, o.Status, o.Currency, o.FulfillmentMode,
		o.Subtotal, o.Shipping, o.Tax, o.TaxRatePercent, o.DiscountAmount, o.GrandTotal,
		o.DiscountCode, o.PointsProjected, o.Address, notes))
}

// CreateItems bulk-inserts the order lines inside the given transaction.
func (s *Store) CreateItems(ctx context.Context, tx pgx.Tx, orderID string, items []Item) error {
	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, menu_item_id, name, qty, unit_price, image_url)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			orderID, it.MenuItemID, it.Name, it.Qty, it.UnitPrice, it.ImageURL); err != nil {
			return err
		}
	}
	return nil
}

// CreateWithItems writes the order header and its lines in one transaction.
func (s *Store) CreateWithItems(ctx context.Context, o Order, items []Item) (Order, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback(ctx)

	created, err := s.Create(ctx, tx, o)
	if err != nil {
		return Order{}, err
	}
	if err := s.CreateItems(ctx, tx, created.ID, items); err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	created.Items = items
	return created, nil
}

// GetByID loads one order with its lines.
func (s *Store) GetByID(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return Order{}, err
	}
	o.Items, err = s.listItems(ctx, id)
	return o, err
}

func (s *Store) listItems(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id::text, order_id::text, menu_item_id::text, name, qty, unit_price, image_url
		FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.Qty, &it.UnitPrice, &it.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListByUser pages through a user's order history, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// UpdateStatus moves an order to a new state, guarded by the expected
// current states. Returns ErrNotFound when no row matched.
func (s *Store) UpdateStatus(ctx context.Context, id string, to Status, from ...Status) (Order, error) {
	allowed := make([]string, 0, len(from))
	for _, st := range from {
		allowed = append(allowed, string(st))
	}
	o, err := scanOrder(s.Pool.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
		RETURNING `+orderColumns, id, to, allowed))
	if err != nil {
		return Order{}, err
	}
	o.Items, err = s.listItems(ctx, id)
	return o, err
}

// CreateFeedback records one rating per user per order.
func (s *Store) CreateFeedback(ctx context.Context, fb Feedback) (Feedback, error) {
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO order_feedback (order_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id, user_id) DO UPDATE
			SET rating = EXCLUDED.rating, comment = EXCLUDED.comment
		RETURNING id::text, created_at`,
		fb.OrderID, fb.UserID, fb.Rating, fb.Comment).Scan(&fb.ID, &fb.CreatedAt)
	return fb, err
}

// CreateReturnRequest opens a return for an order. The unique constraint
// keeps it to one request per order.
func (s *Store) CreateReturnRequest(ctx context.Context, rr ReturnRequest) (ReturnRequest, error) {
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO return_requests (order_id, user_id, reason)
		VALUES ($1, $2, $3)
		RETURNING id::text, status, created_at`,
		rr.OrderID, rr.UserID, rr.Reason).Scan(&rr.ID, &rr.Status, &rr.CreatedAt)
	return rr, err
}
