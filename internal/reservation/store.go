package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reservation is one booked table.
type Reservation struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	PartySize  int32     `json:"partySize"`
	ReservedAt time.Time `json:"reservedAt"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Statuses a reservation can be in.
const (
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
	StatusSeated    = "SEATED"
)

// Store runs reservation queries against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

const columns = `id::text, user_id::text, party_size, reserved_at, status, notes, created_at`

func scan(row pgx.Row) (Reservation, error) {
	var r Reservation
	err := row.Scan(&r.ID, &r.UserID, &r.PartySize, &r.ReservedAt, &r.Status, &r.Notes, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, ErrNotFound
	}
	return r, err
}

// Create books a table.
func (s *Store) Create(ctx context.Context, r Reservation) (Reservation, error) {
	return scan(s.Pool.QueryRow(ctx, `
		INSERT INTO reservations (user_id, party_size, reserved_at, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING `+columns, r.UserID, r.PartySize, r.ReservedAt, r.Notes))
}

// GetByID loads one reservation.
func (s *Store) GetByID(ctx context.Context, id string) (Reservation, error) {
	return scan(s.Pool.QueryRow(ctx, `SELECT `+columns+` FROM reservations WHERE id = $1`, id))
}

// ListByUser returns the caller's reservations, soonest first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Reservation, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+columns+` FROM reservations
		WHERE user_id = $1 ORDER BY reserved_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Reservation
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateStatus moves a reservation to a new state.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) (Reservation, error) {
	return scan(s.Pool.QueryRow(ctx, `
		UPDATE reservations SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+columns, id, status))
}
