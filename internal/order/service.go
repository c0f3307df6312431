package order

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrForbidden         = errors.New("order: not owned by caller")
	ErrInvalidTransition = errors.New("order: status transition not allowed")
	ErrNotReturnable     = errors.New("order: not eligible for return")
	ErrNotRateable       = errors.New("order: only completed orders can be rated")
)

// Querier is the storage surface the service needs. *Store satisfies it.
type Querier interface {
	GetByID(ctx context.Context, id string) (Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, int64, error)
	UpdateStatus(ctx context.Context, id string, to Status, from ...Status) (Order, error)
	CreateFeedback(ctx context.Context, fb Feedback) (Feedback, error)
	CreateReturnRequest(ctx context.Context, rr ReturnRequest) (ReturnRequest, error)
}

// Redeemer records a discount redemption once an order settles.
type Redeemer interface {
	RecordRedemption(ctx context.Context, code, userID, orderID string) error
}

// Enqueuer hands settlement work to the background worker.
type Enqueuer interface {
	EnqueueLoyaltyCredit(ctx context.Context, userID, orderID string, points int64) error
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) error
}

// transitions lists the reachable next states per current state.
var transitions = map[Status][]Status{
	StatusPendingPayment: {StatusSettlement, StatusCancelled},
	StatusSettlement:     {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusCompleted},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Service owns order lifecycle after checkout.
type Service struct {
	Q         Querier
	Discounts Redeemer
	Queue     Enqueuer
	Events    Emitter
	Log       zerolog.Logger
}

// Get loads an order, enforcing ownership unless the caller is staff.
func (s *Service) Get(ctx context.Context, id, userID string, staff bool) (Order, error) {
	o, err := s.Q.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !staff && o.UserID != userID {
		return Order{}, ErrForbidden
	}
	return o, nil
}

// History pages the caller's past orders.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]Order, int64, error) {
	return s.Q.ListByUser(ctx, userID, limit, offset)
}

// Cancel lets the owner abort an order that has not been paid.
func (s *Service) Cancel(ctx context.Context, id, userID string) (Order, error) {
	o, err := s.Q.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.UserID != userID {
		return Order{}, ErrForbidden
	}
	o, err = s.Q.UpdateStatus(ctx, id, StatusCancelled, StatusPendingPayment)
	if errors.Is(err, ErrNotFound) {
		return Order{}, ErrInvalidTransition
	}
	return o, err
}

// Transition moves an order along the lifecycle. Settlement triggers the
// loyalty credit and burns the applied discount code.
func (s *Service) Transition(ctx context.Context, id string, to Status) (Order, error) {
	o, err := s.Q.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(o.Status, to) {
		return Order{}, ErrInvalidTransition
	}
	updated, err := s.Q.UpdateStatus(ctx, id, to, o.Status)
	if errors.Is(err, ErrNotFound) {
		return Order{}, ErrInvalidTransition
	}
	if err != nil {
		return Order{}, err
	}
	if to == StatusSettlement {
		s.onSettled(ctx, updated)
	}
	return updated, nil
}

// onSettled runs the side effects of payment. Failures are logged, not
// bubbled: the status change already committed.
func (s *Service) onSettled(ctx context.Context, o Order) {
	if o.DiscountCode != nil && s.Discounts != nil {
		if err := s.Discounts.RecordRedemption(ctx, *o.DiscountCode, o.UserID, o.ID); err != nil {
			s.Log.Error().Err(err).Str("order_id", o.ID).Msg("record discount redemption")
		}
	}
	if s.Queue != nil && o.PointsProjected > 0 {
		if err := s.Queue.EnqueueLoyaltyCredit(ctx, o.UserID, o.ID, o.PointsProjected); err != nil {
			s.Log.Error().Err(err).Str("order_id", o.ID).Msg("enqueue loyalty credit")
		}
	}
	if s.Events != nil {
		if err := s.Events.Emit(ctx, "order.settled", o.ID, o); err != nil {
			s.Log.Error().Err(err).Str("order_id", o.ID).Msg("emit order.settled")
		}
	}
}

// Rate records the owner's feedback on a completed order.
func (s *Service) Rate(ctx context.Context, orderID, userID string, rating int32, comment string) (Feedback, error) {
	o, err := s.Q.GetByID(ctx, orderID)
	if err != nil {
		return Feedback{}, err
	}
	if o.UserID != userID {
		return Feedback{}, ErrForbidden
	}
	if o.Status != StatusCompleted {
		return Feedback{}, ErrNotRateable
	}
	return s.Q.CreateFeedback(ctx, Feedback{OrderID: orderID, UserID: userID, Rating: rating, Comment: comment})
}

// returnWindow is how long after the order was placed a return may be opened.
const returnWindow = 14 * 24 * time.Hour

// RequestReturn opens a return for a settled or completed order.
func (s *Service) RequestReturn(ctx context.Context, orderID, userID, reason string, now time.Time) (ReturnRequest, error) {
	o, err := s.Q.GetByID(ctx, orderID)
	if err != nil {
		return ReturnRequest{}, err
	}
	if o.UserID != userID {
		return ReturnRequest{}, ErrForbidden
	}
	switch o.Status {
	case StatusSettlement, StatusPreparing, StatusCompleted:
	default:
		return ReturnRequest{}, ErrNotReturnable
	}
	if now.Sub(o.CreatedAt) > returnWindow {
		return ReturnRequest{}, ErrNotReturnable
	}
	return s.Q.CreateReturnRequest(ctx, ReturnRequest{OrderID: orderID, UserID: userID, Reason: reason})
}
