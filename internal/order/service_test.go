package order

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubQuerier struct {
	orders   map[string]Order
	feedback []Feedback
	returns  []ReturnRequest
}

func newStubQuerier(orders ...Order) *stubQuerier {
	s := &stubQuerier{orders: map[string]Order{}}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *stubQuerier) GetByID(_ context.Context, id string) (Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (s *stubQuerier) ListByUser(_ context.Context, userID string, limit, offset int) ([]Order, int64, error) {
	var out []Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (s *stubQuerier) UpdateStatus(_ context.Context, id string, to Status, from ...Status) (Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	allowed := false
	for _, st := range from {
		if o.Status == st {
			allowed = true
		}
	}
	if !allowed {
		return Order{}, ErrNotFound
	}
	o.Status = to
	s.orders[id] = o
	return o, nil
}

func (s *stubQuerier) CreateFeedback(_ context.Context, fb Feedback) (Feedback, error) {
	fb.ID = "fb-1"
	s.feedback = append(s.feedback, fb)
	return fb, nil
}

func (s *stubQuerier) CreateReturnRequest(_ context.Context, rr ReturnRequest) (ReturnRequest, error) {
	rr.ID = "rr-1"
	rr.Status = "REQUESTED"
	s.returns = append(s.returns, rr)
	return rr, nil
}

type stubRedeemer struct {
	calls []string
}

func (s *stubRedeemer) RecordRedemption(_ context.Context, code, userID, orderID string) error {
	s.calls = append(s.calls, code+"/"+orderID)
	return nil
}

type stubEnqueuer struct {
	credits []int64
}

func (s *stubEnqueuer) EnqueueLoyaltyCredit(_ context.Context, userID, orderID string, points int64) error {
	s.credits = append(s.credits, points)
	return nil
}

type stubEmitter struct {
	topics []string
}

func (s *stubEmitter) Emit(_ context.Context, topic, _ string, _ any) error {
	s.topics = append(s.topics, topic)
	return nil
}

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(StatusPendingPayment, StatusSettlement))
	require.True(t, CanTransition(StatusPendingPayment, StatusCancelled))
	require.True(t, CanTransition(StatusSettlement, StatusPreparing))
	require.True(t, CanTransition(StatusPreparing, StatusCompleted))
	require.False(t, CanTransition(StatusCompleted, StatusCancelled))
	require.False(t, CanTransition(StatusPendingPayment, StatusCompleted))
	require.False(t, CanTransition(StatusCancelled, StatusSettlement))
}

func TestSettlementSideEffects(t *testing.T) {
	code := "HEMAT10"
	q := newStubQuerier(Order{
		ID:              "o-1",
		UserID:          "u-1",
		Status:          StatusPendingPayment,
		DiscountCode:    &code,
		PointsProjected: 310,
	})
	red := &stubRedeemer{}
	enq := &stubEnqueuer{}
	emit := &stubEmitter{}
	svc := &Service{Q: q, Discounts: red, Queue: enq, Events: emit, Log: zerolog.Nop()}

	o, err := svc.Transition(context.Background(), "o-1", StatusSettlement)
	require.NoError(t, err)
	require.Equal(t, StatusSettlement, o.Status)
	require.Equal(t, []string{"HEMAT10/o-1"}, red.calls)
	require.Equal(t, []int64{310}, enq.credits)
	require.Equal(t, []string{"order.settled"}, emit.topics)
}

func TestSettlementSkipsZeroPoints(t *testing.T) {
	q := newStubQuerier(Order{ID: "o-1", UserID: "u-1", Status: StatusPendingPayment})
	enq := &stubEnqueuer{}
	svc := &Service{Q: q, Queue: enq, Log: zerolog.Nop()}

	_, err := svc.Transition(context.Background(), "o-1", StatusSettlement)
	require.NoError(t, err)
	require.Empty(t, enq.credits)
}

func TestTransitionRejected(t *testing.T) {
	q := newStubQuerier(Order{ID: "o-1", UserID: "u-1", Status: StatusCompleted})
	svc := &Service{Q: q, Log: zerolog.Nop()}

	_, err := svc.Transition(context.Background(), "o-1", StatusSettlement)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelOnlyPending(t *testing.T) {
	q := newStubQuerier(
		Order{ID: "o-1", UserID: "u-1", Status: StatusPendingPayment},
		Order{ID: "o-2", UserID: "u-1", Status: StatusSettlement},
	)
	svc := &Service{Q: q, Log: zerolog.Nop()}

	o, err := svc.Cancel(context.Background(), "o-1", "u-1")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, o.Status)

	_, err = svc.Cancel(context.Background(), "o-2", "u-1")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelOwnership(t *testing.T) {
	q := newStubQuerier(Order{ID: "o-1", UserID: "u-1", Status: StatusPendingPayment})
	svc := &Service{Q: q, Log: zerolog.Nop()}

	_, err := svc.Cancel(context.Background(), "o-1", "u-2")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestRateRequiresCompleted(t *testing.T) {
	q := newStubQuerier(
		Order{ID: "o-1", UserID: "u-1", Status: StatusCompleted},
		Order{ID: "o-2", UserID: "u-1", Status: StatusSettlement},
	)
	svc := &Service{Q: q, Log: zerolog.Nop()}

	fb, err := svc.Rate(context.Background(), "o-1", "u-1", 5, "mantap")
	require.NoError(t, err)
	require.Equal(t, int32(5), fb.Rating)

	_, err = svc.Rate(context.Background(), "o-2", "u-1", 4, "")
	require.ErrorIs(t, err, ErrNotRateable)
}

func TestReturnWindow(t *testing.T) {
	now := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	q := newStubQuerier(
		Order{ID: "o-1", UserID: "u-1", Status: StatusCompleted, CreatedAt: now.Add(-3 * 24 * time.Hour)},
		Order{ID: "o-2", UserID: "u-1", Status: StatusCompleted, CreatedAt: now.Add(-30 * 24 * time.Hour)},
		Order{ID: "o-3", UserID: "u-1", Status: StatusPendingPayment, CreatedAt: now},
	)
	svc := &Service{Q: q, Log: zerolog.Nop()}

	rr, err := svc.RequestReturn(context.Background(), "o-1", "u-1", "wrong dish delivered", now)
	require.NoError(t, err)
	require.Equal(t, "REQUESTED", rr.Status)

	_, err = svc.RequestReturn(context.Background(), "o-2", "u-1", "too late", now)
	require.ErrorIs(t, err, ErrNotReturnable)

	_, err = svc.RequestReturn(context.Background(), "o-3", "u-1", "not paid yet", now)
	require.ErrorIs(t, err, ErrNotReturnable)
}
