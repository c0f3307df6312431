package loyalty

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("loyalty: account not found")
	ErrAlreadyRef    = errors.New("loyalty: referral already claimed")
	ErrSelfReferral  = errors.New("loyalty: cannot refer yourself")
	ErrBadReferral   = errors.New("loyalty: referral code not found")
	ErrDuplicateCred = errors.New("loyalty: credit already recorded")
)

// Account is a member's stored balance and program standing.
type Account struct {
	UserID       string    `json:"userId"`
	Points       int64     `json:"points"`
	Tier         string    `json:"tier"`
	ReferralCode *string   `json:"referralCode,omitempty"`
	ReferredBy   *string   `json:"referredBy,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// LedgerEntry is one credit or debit against an account.
type LedgerEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Delta     int64     `json:"delta"`
	Reason    string    `json:"reason"`
	RefID     string    `json:"refId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store runs loyalty queries against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

const accountColumns = `user_id::text, points, tier, referral_code, referred_by::text, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.UserID, &a.Points, &a.Tier, &a.ReferralCode, &a.ReferredBy, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	return a, err
}

// GetAccount loads a member's account.
func (s *Store) GetAccount(ctx context.Context, userID string) (Account, error) {
	return scanAccount(s.Pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM loyalty_accounts WHERE user_id = $1`, userID))
}

// UpsertAccount creates the account row on first touch.
func (s *Store) UpsertAccount(ctx context.Context, userID, referralCode string) (Account, error) {
	return scanAccount(s.Pool.QueryRow(ctx, `
		INSERT INTO loyalty_accounts (user_id, referral_code)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
		RETURNING `+accountColumns, userID, referralCode))
}

// GetAccountByReferralCode resolves a referral code to its owner.
func (s *Store) GetAccountByReferralCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(s.Pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM loyalty_accounts WHERE referral_code = $1`, code))
}

// Credit appends a ledger entry and bumps the balance in one transaction.
// The (user, reason, ref) unique key makes retries no-ops.
func (s *Store) Credit(ctx context.Context, userID string, delta int64, reason, refID, newTier string) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO loyalty_ledger (user_id, delta, reason, ref_id)
		VALUES ($1, $2, $3, $4)`, userID, delta, reason, refID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCred
		}
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE loyalty_accounts
		SET points = points + $2, tier = $3, updated_at = now()
		WHERE user_id = $1`, userID, delta, newTier); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SetReferredBy marks who referred the member, once.
func (s *Store) SetReferredBy(ctx context.Context, userID, referrerID string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE loyalty_accounts
		SET referred_by = $2, updated_at = now()
		WHERE user_id = $1 AND referred_by IS NULL`, userID, referrerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyRef
	}
	return nil
}

// Ledger pages a member's history, newest first.
func (s *Store) Ledger(ctx context.Context, userID string, limit, offset int) ([]LedgerEntry, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id::text, user_id::text, delta, reason, ref_id, created_at
		FROM loyalty_ledger
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.Reason, &e.RefID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
