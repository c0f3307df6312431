package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound   = errors.New("auth: user not found")
	ErrEmailTaken = errors.New("auth: email already registered")
)

// User is an account row without the password hash.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type userRow struct {
	User
	PasswordHash string
}

// Store runs user queries against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

const userColumns = `id::text, email, password_hash, full_name, phone, role, created_at`

func scanUser(row pgx.Row) (userRow, error) {
	var u userRow
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return userRow{}, ErrNotFound
	}
	return u, err
}

// CreateUser inserts a new account.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash, fullName, phone string) (User, error) {
	u, err := scanUser(s.Pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, full_name, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns, email, passwordHash, fullName, phone))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return u.User, nil
}

// GetUserByEmail loads an account with its hash for login.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, string, error) {
	u, err := scanUser(s.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return User{}, "", err
	}
	return u.User, u.PasswordHash, nil
}

// GetUserByID loads an account.
func (s *Store) GetUserByID(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return u.User, err
}

// EmailFor resolves a user id to their address, for the mailer.
func (s *Store) EmailFor(ctx context.Context, userID string) (string, error) {
	u, err := s.GetUserByID(ctx, userID)
	return u.Email, err
}
