package cart

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Cart is one shopping cart, owned by a user or an anonymous session.
type Cart struct {
	ID           string    `json:"id"`
	UserID       *string   `json:"userId,omitempty"`
	AnonID       *string   `json:"anonId,omitempty"`
	DiscountCode *string   `json:"discountCode,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Item is one cart row. MenuItemID is nil when the referenced dish has been
// removed from the menu; the embedded name/price captured at add time then
// act as the fallback.
type Item struct {
	ID         string           `json:"id"`
	CartID     string           `json:"cartId"`
	MenuItemID *string          `json:"menuItemId,omitempty"`
	Name       string           `json:"name"`
	UnitPrice  *decimal.Decimal `json:"unitPrice,omitempty"`
	ImageURL   string           `json:"imageUrl,omitempty"`
	Qty        int32            `json:"qty"`
}

// Store runs cart queries against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

const cartColumns = `id::text, user_id::text, anon_id, applied_discount_code, expires_at`

func scanCart(row pgx.Row) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AnonID, &c.DiscountCode, &c.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cart{}, ErrNotFound
	}
	return c, err
}

// GetByID loads a cart.
func (s *Store) GetByID(ctx context.Context, id string) (Cart, error) {
	return scanCart(s.Pool.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id))
}

// GetActiveByUser returns the user's newest unexpired cart.
func (s *Store) GetActiveByUser(ctx context.Context, userID string) (Cart, error) {
	return scanCart(s.Pool.QueryRow(ctx, `
		SELECT `+cartColumns+` FROM carts
		WHERE user_id = $1 AND expires_at > now()
		ORDER BY created_at DESC LIMIT 1`, userID))
}

// GetActiveByAnon returns the guest session's newest unexpired cart.
func (s *Store) GetActiveByAnon(ctx context.Context, anonID string) (Cart, error) {
	return scanCart(s.Pool.QueryRow(ctx, `
		SELECT `+cartColumns+` FROM carts
		WHERE anon_id = $1 AND expires_at > now()
		ORDER BY created_at DESC LIMIT 1`, anonID))
}

// Create inserts a cart for a user or an anonymous session.
func (s *Store) Create(ctx context.Context, userID, anonID *string, expiresAt time.Time) (Cart, error) {
	return scanCart(s.Pool.QueryRow(ctx, `
		INSERT INTO carts (user_id, anon_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING `+cartColumns, userID, anonID, expiresAt))
}

// Touch extends the cart's expiry.
func (s *Store) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE carts SET expires_at = $2, updated_at = now() WHERE id = $1`, id, expiresAt)
	return err
}

// SetDiscountCode attaches or clears the applied discount code.
func (s *Store) SetDiscountCode(ctx context.Context, id string, code *string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE carts SET applied_discount_code = $2, updated_at = now() WHERE id = $1`, id, code)
	return err
}

// TransferToUser reassigns a guest cart after login.
func (s *Store) TransferToUser(ctx context.Context, id, userID string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE carts SET user_id = $2, anon_id = NULL, updated_at = now() WHERE id = $1`, id, userID)
	return err
}

const itemColumns = `id::text, cart_id::text, menu_item_id::text, name, unit_price, image_url, qty`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.CartID, &it.MenuItemID, &it.Name, &it.UnitPrice, &it.ImageURL, &it.Qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

// ListItems returns all rows of a cart.
func (s *Store) ListItems(ctx context.Context, cartID string) ([]Item, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+itemColumns+` FROM cart_items WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.MenuItemID, &it.Name, &it.UnitPrice, &it.ImageURL, &it.Qty); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// GetItemByID loads one cart row.
func (s *Store) GetItemByID(ctx context.Context, id string) (Item, error) {
	return scanItem(s.Pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM cart_items WHERE id = $1`, id))
}

// FindItemByMenuItem locates an existing row for the same dish.
func (s *Store) FindItemByMenuItem(ctx context.Context, cartID, menuItemID string) (Item, error) {
	return scanItem(s.Pool.QueryRow(ctx, `
		SELECT `+itemColumns+` FROM cart_items
		WHERE cart_id = $1 AND menu_item_id = $2`, cartID, menuItemID))
}

// CreateItem inserts a cart row.
func (s *Store) CreateItem(ctx context.Context, it Item) (Item, error) {
	return scanItem(s.Pool.QueryRow(ctx, `
		INSERT INTO cart_items (cart_id, menu_item_id, name, unit_price, image_url, qty)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+itemColumns,
		it.CartID, it.MenuItemID, it.Name, it.UnitPrice, it.ImageURL, it.Qty))
}

// UpdateItemQty sets the quantity of a cart row.
func (s *Store) UpdateItemQty(ctx context.Context, id string, qty int32) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE cart_items SET qty = $2, updated_at = now() WHERE id = $1`, id, qty)
	return err
}

// DeleteItem removes a cart row, scoped to its cart.
func (s *Store) DeleteItem(ctx context.Context, cartID, itemID string) error {
	_, err := s.Pool.Exec(ctx, `
		DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	return err
}
