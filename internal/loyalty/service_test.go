package loyalty

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubQuerier struct {
	accounts map[string]Account
	ledger   map[string]bool
}

func newStubQuerier() *stubQuerier {
	return &stubQuerier{accounts: map[string]Account{}, ledger: map[string]bool{}}
}

func (s *stubQuerier) GetAccount(_ context.Context, userID string) (Account, error) {
	a, ok := s.accounts[userID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (s *stubQuerier) UpsertAccount(_ context.Context, userID, referralCode string) (Account, error) {
	if a, ok := s.accounts[userID]; ok {
		return a, nil
	}
	a := Account{UserID: userID, Tier: "bronze", ReferralCode: &referralCode}
	s.accounts[userID] = a
	return a, nil
}

func (s *stubQuerier) GetAccountByReferralCode(_ context.Context, code string) (Account, error) {
	for _, a := range s.accounts {
		if a.ReferralCode != nil && *a.ReferralCode == code {
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

func (s *stubQuerier) Credit(_ context.Context, userID string, delta int64, reason, refID, newTier string) error {
	key := userID + "/" + reason + "/" + refID
	if s.ledger[key] {
		return ErrDuplicateCred
	}
	s.ledger[key] = true
	a := s.accounts[userID]
	a.Points += delta
	a.Tier = newTier
	s.accounts[userID] = a
	return nil
}

func (s *stubQuerier) SetReferredBy(_ context.Context, userID, referrerID string) error {
	a := s.accounts[userID]
	if a.ReferredBy != nil {
		return ErrAlreadyRef
	}
	a.ReferredBy = &referrerID
	s.accounts[userID] = a
	return nil
}

func (s *stubQuerier) Ledger(_ context.Context, userID string, limit, offset int) ([]LedgerEntry, error) {
	return nil, nil
}

func newTestService(q *stubQuerier) *Service {
	return &Service{
		Q:             q,
		Table:         DefaultTierTable(),
		Rate:          decimal.RequireFromString("1"),
		ReferralBonus: 100,
		Log:           zerolog.Nop(),
	}
}

func TestEnsureCreatesAccount(t *testing.T) {
	q := newStubQuerier()
	svc := newTestService(q)

	a, err := svc.Ensure(context.Background(), "u-1")
	require.NoError(t, err)
	require.Equal(t, "bronze", a.Tier)
	require.NotNil(t, a.ReferralCode)
	require.Contains(t, *a.ReferralCode, "RESTO-")
}

func TestCreditOrderIdempotent(t *testing.T) {
	q := newStubQuerier()
	svc := newTestService(q)

	require.NoError(t, svc.CreditOrder(context.Background(), "u-1", "o-1", 600))
	require.NoError(t, svc.CreditOrder(context.Background(), "u-1", "o-1", 600))

	a, err := q.GetAccount(context.Background(), "u-1")
	require.NoError(t, err)
	require.Equal(t, int64(600), a.Points)
	require.Equal(t, "silver", a.Tier)
}

func TestCreditOrderSkipsNonPositive(t *testing.T) {
	q := newStubQuerier()
	svc := newTestService(q)

	require.NoError(t, svc.CreditOrder(context.Background(), "u-1", "o-1", 0))
	_, err := q.GetAccount(context.Background(), "u-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClaimReferral(t *testing.T) {
	q := newStubQuerier()
	svc := newTestService(q)

	owner, err := svc.Ensure(context.Background(), "u-owner")
	require.NoError(t, err)

	require.NoError(t, svc.ClaimReferral(context.Background(), "u-new", *owner.ReferralCode))

	ownerAfter, _ := q.GetAccount(context.Background(), "u-owner")
	require.Equal(t, int64(100), ownerAfter.Points)
	claimer, _ := q.GetAccount(context.Background(), "u-new")
	require.Equal(t, int64(100), claimer.Points)
	require.NotNil(t, claimer.ReferredBy)
	require.Equal(t, "u-owner", *claimer.ReferredBy)
}

func TestClaimReferralRejectsSelf(t *testing.T) {
	q := newStubQuerier()
	svc := newTestService(q)

	owner, err := svc.Ensure(context.Background(), "u-1")
	require.NoError(t, err)

	err = svc.ClaimReferral(context.Background(), "u-1", *owner.ReferralCode)
	require.ErrorIs(t, err, ErrSelfReferral)
}

func TestClaimReferralOnce(t *testing.T) {
	q := newStubQuerier()
	svc := newTestService(q)

	a, _ := svc.Ensure(context.Background(), "u-a")
	b, _ := svc.Ensure(context.Background(), "u-b")

	require.NoError(t, svc.ClaimReferral(context.Background(), "u-new", *a.ReferralCode))
	err := svc.ClaimReferral(context.Background(), "u-new", *b.ReferralCode)
	require.ErrorIs(t, err, ErrAlreadyRef)
}

func TestClaimReferralUnknownCode(t *testing.T) {
	svc := newTestService(newStubQuerier())

	err := svc.ClaimReferral(context.Background(), "u-1", "RESTO-NOPE")
	require.ErrorIs(t, err, ErrBadReferral)
}

func TestTierFor(t *testing.T) {
	table := DefaultTierTable()
	require.Equal(t, "bronze", table.TierFor(0))
	require.Equal(t, "bronze", table.TierFor(499))
	require.Equal(t, "silver", table.TierFor(500))
	require.Equal(t, "gold", table.TierFor(4999))
	require.Equal(t, "platinum", table.TierFor(5000))
}
