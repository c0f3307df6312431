package discount

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Querier is the persistence surface the service needs. *Store satisfies it.
type Querier interface {
	GetByCode(ctx context.Context, code string) (Rule, error)
	CountUsageByUser(ctx context.Context, code, userID string) (int32, error)
	Upsert(ctx context.Context, r Rule) error
	RecordUsage(ctx context.Context, code, userID, orderID string) error
}

// Service validates and administers discount codes.
type Service struct {
	Q                   Querier
	DefaultPerUserLimit int32
	Now                 func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Resolve looks up a code and validates it against the pre-discount total for
// the given user (nil for guests, which skips the per-user check).
func (s *Service) Resolve(ctx context.Context, code string, userID *string, preDiscountTotal decimal.Decimal) (Rule, error) {
	if s == nil || s.Q == nil {
		return Rule{}, errors.New("discount service not configured")
	}
	rule, err := s.Q.GetByCode(ctx, code)
	if err != nil {
		return Rule{}, err
	}
	perUserUsed := int32(-1)
	if userID != nil && *userID != "" {
		perUserUsed, err = s.Q.CountUsageByUser(ctx, rule.Code, *userID)
		if err != nil {
			return Rule{}, err
		}
	}
	if err := rule.Validate(s.now(), preDiscountTotal, perUserUsed, s.DefaultPerUserLimit); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// RecordRedemption marks a settled order's redemption. Retry-safe.
func (s *Service) RecordRedemption(ctx context.Context, code, userID, orderID string) error {
	if s == nil || s.Q == nil {
		return errors.New("discount service not configured")
	}
	return s.Q.RecordUsage(ctx, code, userID, orderID)
}

// Save validates and stores an admin-authored rule.
func (s *Service) Save(ctx context.Context, rule Rule) error {
	if s == nil || s.Q == nil {
		return errors.New("discount service not configured")
	}
	rule.Code = CanonicalCode(rule.Code)
	if rule.Code == "" {
		return ErrMalformed
	}
	if rule.Value.IsNegative() || rule.MinOrderTotal.IsNegative() {
		return ErrMalformed
	}
	switch rule.Kind {
	case "percentage", "fixed":
	default:
		return ErrMalformed
	}
	return s.Q.Upsert(ctx, rule)
}
