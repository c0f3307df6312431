package loyalty

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Ledger reasons. One (user, reason, ref) triple is credited at most once.
const (
	ReasonOrder    = "order"
	ReasonReferral = "referral"
	ReasonSignup   = "signup"
)

// Querier is the storage surface the service needs. *Store satisfies it.
type Querier interface {
	GetAccount(ctx context.Context, userID string) (Account, error)
	UpsertAccount(ctx context.Context, userID, referralCode string) (Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (Account, error)
	Credit(ctx context.Context, userID string, delta int64, reason, refID, newTier string) error
	SetReferredBy(ctx context.Context, userID, referrerID string) error
	Ledger(ctx context.Context, userID string, limit, offset int) ([]LedgerEntry, error)
}

// Service owns loyalty accounts: balances, tiers, referrals.
type Service struct {
	Q             Querier
	Table         TierTable
	Rate          decimal.Decimal
	ReferralBonus int64
	Log           zerolog.Logger
}

// newReferralCode mints a short shareable code.
func newReferralCode() string {
	return "RESTO-" + strings.ToUpper(uuid.NewString()[:8])
}

// Ensure returns the member's account, creating it on first touch.
func (s *Service) Ensure(ctx context.Context, userID string) (Account, error) {
	a, err := s.Q.GetAccount(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return s.Q.UpsertAccount(ctx, userID, newReferralCode())
	}
	return a, err
}

// SnapshotFor adapts the stored account into the projector's input.
func (s *Service) SnapshotFor(ctx context.Context, userID string) (Snapshot, error) {
	a, err := s.Ensure(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		CurrentPoints:         a.Points,
		Tier:                  a.Tier,
		PointsPerCurrencyUnit: s.Rate,
	}, nil
}

// Overview is the member dashboard payload.
type Overview struct {
	Account    Account       `json:"account"`
	Projection Projection    `json:"projection"`
	Ledger     []LedgerEntry `json:"ledger"`
}

// Me bundles the account, its standing, and recent history.
func (s *Service) Me(ctx context.Context, userID string) (Overview, error) {
	a, err := s.Ensure(ctx, userID)
	if err != nil {
		return Overview{}, err
	}
	snap := Snapshot{CurrentPoints: a.Points, Tier: a.Tier, PointsPerCurrencyUnit: s.Rate}
	entries, err := s.Q.Ledger(ctx, userID, 20, 0)
	if err != nil {
		return Overview{}, err
	}
	return Overview{
		Account:    a,
		Projection: Project(decimal.Zero, snap, s.Table),
		Ledger:     entries,
	}, nil
}

// CreditOrder grants the points projected at checkout, once per order.
func (s *Service) CreditOrder(ctx context.Context, userID, orderID string, points int64) error {
	if points <= 0 {
		return nil
	}
	a, err := s.Ensure(ctx, userID)
	if err != nil {
		return err
	}
	newTier := s.Table.TierFor(a.Points + points)
	err = s.Q.Credit(ctx, userID, points, ReasonOrder, orderID, newTier)
	if errors.Is(err, ErrDuplicateCred) {
		s.Log.Debug().Str("order_id", orderID).Msg("loyalty credit already applied")
		return nil
	}
	return err
}

// ClaimReferral links the new member to the code's owner and pays both
// sides the bonus. A member can claim one referral, ever.
func (s *Service) ClaimReferral(ctx context.Context, userID, code string) error {
	owner, err := s.Q.GetAccountByReferralCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if errors.Is(err, ErrNotFound) {
		return ErrBadReferral
	}
	if err != nil {
		return err
	}
	if owner.UserID == userID {
		return ErrSelfReferral
	}
	if _, err := s.Ensure(ctx, userID); err != nil {
		return err
	}
	if err := s.Q.SetReferredBy(ctx, userID, owner.UserID); err != nil {
		return err
	}
	if s.ReferralBonus <= 0 {
		return nil
	}
	refTier := s.Table.TierFor(owner.Points + s.ReferralBonus)
	if err := s.Q.Credit(ctx, owner.UserID, s.ReferralBonus, ReasonReferral, userID, refTier); err != nil && !errors.Is(err, ErrDuplicateCred) {
		return err
	}
	a, err := s.Q.GetAccount(ctx, userID)
	if err != nil {
		return err
	}
	newTier := s.Table.TierFor(a.Points + s.ReferralBonus)
	if err := s.Q.Credit(ctx, userID, s.ReferralBonus, ReasonSignup, owner.UserID, newTier); err != nil && !errors.Is(err, ErrDuplicateCred) {
		return err
	}
	return nil
}
