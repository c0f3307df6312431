package discount

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-resto/internal/pricing"
)

// Store persists discount codes and their usage.
type Store struct {
	Pool *pgxpool.Pool
}

// GetByCode loads a rule by canonical code.
func (s *Store) GetByCode(ctx context.Context, code string) (Rule, error) {
	var (
		r    Rule
		kind string
	)
	err := s.Pool.QueryRow(ctx, `
		SELECT code, kind, value, min_order_total, valid_from, valid_to,
		       usage_limit, used_count, per_user_limit
		FROM discount_codes
		WHERE code = $1`, CanonicalCode(code)).
		Scan(&r.Code, &kind, &r.Value, &r.MinOrderTotal, &r.ValidFrom, &r.ValidTo,
			&r.UsageLimit, &r.UsedCount, &r.PerUserLimit)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, ErrNotFound
	}
	if err != nil {
		return Rule{}, err
	}
	r.Kind = kindFromString(kind)
	return r, nil
}

// CountUsageByUser returns how many settled orders of this user redeemed the code.
func (s *Store) CountUsageByUser(ctx context.Context, code, userID string) (int32, error) {
	var n int32
	err := s.Pool.QueryRow(ctx, `
		SELECT count(*) FROM discount_usages WHERE code = $1 AND user_id = $2`,
		CanonicalCode(code), userID).Scan(&n)
	return n, err
}

// Upsert creates or replaces a rule (admin surface).
func (s *Store) Upsert(ctx context.Context, r Rule) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO discount_codes (code, kind, value, min_order_total, valid_from, valid_to, usage_limit, per_user_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE SET
			kind = EXCLUDED.kind,
			value = EXCLUDED.value,
			min_order_total = EXCLUDED.min_order_total,
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to,
			usage_limit = EXCLUDED.usage_limit,
			per_user_limit = EXCLUDED.per_user_limit,
			updated_at = now()`,
		CanonicalCode(r.Code), string(r.Kind), r.Value, r.MinOrderTotal,
		r.ValidFrom, r.ValidTo, r.UsageLimit, r.PerUserLimit)
	return err
}

// RecordUsage marks a settled order's redemption and bumps the global counter.
// Keyed by (code, order) so settlement retries stay idempotent.
func (s *Store) RecordUsage(ctx context.Context, code, userID, orderID string) error {
	canonical := CanonicalCode(code)
	tag, err := s.Pool.Exec(ctx, `
		INSERT INTO discount_usages (code, user_id, order_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (code, order_id) DO NOTHING`, canonical, userID, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	_, err = s.Pool.Exec(ctx, `
		UPDATE discount_codes SET used_count = used_count + 1, updated_at = now()
		WHERE code = $1`, canonical)
	return err
}

func kindFromString(kind string) pricing.DiscountKind {
	return pricing.DiscountKind(strings.ToLower(strings.TrimSpace(kind)))
}
