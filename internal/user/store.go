package user

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("user: address not found")

// Address is one delivery address in the caller's book.
type Address struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Label        string    `json:"label,omitempty"`
	ReceiverName string    `json:"receiverName"`
	Phone        string    `json:"phone"`
	City         string    `json:"city,omitempty"`
	PostalCode   string    `json:"postalCode,omitempty"`
	AddressLine1 string    `json:"addressLine1"`
	AddressLine2 string    `json:"addressLine2,omitempty"`
	IsDefault    bool      `json:"isDefault"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store runs address queries against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

const addressColumns = `id::text, user_id::text, label, receiver_name, phone, city,
	postal_code, address_line1, address_line2, is_default, updated_at`

func scanAddress(row pgx.Row) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.ReceiverName, &a.Phone, &a.City,
		&a.PostalCode, &a.AddressLine1, &a.AddressLine2, &a.IsDefault, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Address{}, ErrNotFound
	}
	return a, err
}

// List returns the caller's addresses, default first.
func (s *Store) List(ctx context.Context, userID string) ([]Address, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+addressColumns+` FROM addresses
		WHERE user_id = $1 ORDER BY is_default DESC, created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Get loads one address scoped to its owner.
func (s *Store) Get(ctx context.Context, userID, id string) (Address, error) {
	return scanAddress(s.Pool.QueryRow(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2`, id, userID))
}

// Create inserts an address. The first address in a book becomes the
// default; an explicit default demotes the rest.
func (s *Store) Create(ctx context.Context, a Address) (Address, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Address{}, err
	}
	defer tx.Rollback(ctx)

	var count int
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM addresses WHERE user_id = $1`, a.UserID).Scan(&count); err != nil {
		return Address{}, err
	}
	if count == 0 {
		a.IsDefault = true
	}
	if a.IsDefault {
		if _, err := tx.Exec(ctx,
			`UPDATE addresses SET is_default = false WHERE user_id = $1`, a.UserID); err != nil {
			return Address{}, err
		}
	}
	created, err := scanAddress(tx.QueryRow(ctx, `
		INSERT INTO addresses (user_id, label, receiver_name, phone, city, postal_code,
			address_line1, address_line2, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+addressColumns,
		a.UserID, a.Label, a.ReceiverName, a.Phone, a.City, a.PostalCode,
		a.AddressLine1, a.AddressLine2, a.IsDefault))
	if err != nil {
		return Address{}, err
	}
	return created, tx.Commit(ctx)
}

// Update rewrites an address scoped to its owner.
func (s *Store) Update(ctx context.Context, a Address) (Address, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Address{}, err
	}
	defer tx.Rollback(ctx)

	if a.IsDefault {
		if _, err := tx.Exec(ctx,
			`UPDATE addresses SET is_default = false WHERE user_id = $1 AND id <> $2`,
			a.UserID, a.ID); err != nil {
			return Address{}, err
		}
	}
	updated, err := scanAddress(tx.QueryRow(ctx, `
		UPDATE addresses
		SET label = $3, receiver_name = $4, phone = $5, city = $6, postal_code = $7,
			address_line1 = $8, address_line2 = $9, is_default = $10, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+addressColumns,
		a.ID, a.UserID, a.Label, a.ReceiverName, a.Phone, a.City, a.PostalCode,
		a.AddressLine1, a.AddressLine2, a.IsDefault))
	if err != nil {
		return Address{}, err
	}
	return updated, tx.Commit(ctx)
}

// Delete removes an address scoped to its owner.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDefault promotes one address and demotes the rest.
func (s *Store) SetDefault(ctx context.Context, userID, id string) (Address, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Address{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE addresses SET is_default = false WHERE user_id = $1`, userID); err != nil {
		return Address{}, err
	}
	a, err := scanAddress(tx.QueryRow(ctx, `
		UPDATE addresses SET is_default = true, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+addressColumns, id, userID))
	if err != nil {
		return Address{}, err
	}
	return a, tx.Commit(ctx)
}
