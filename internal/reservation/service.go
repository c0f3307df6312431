package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrNotFound      = errors.New("reservation: not found")
	ErrForbidden     = errors.New("reservation: not owned by caller")
	ErrTooSoon       = errors.New("reservation: not enough notice")
	ErrPartyTooBig   = errors.New("reservation: party exceeds the limit")
	ErrPastDate      = errors.New("reservation: time is in the past")
	ErrNotCancelable = errors.New("reservation: already seated or cancelled")
)

// Querier is the storage surface the service needs. *Store satisfies it.
type Querier interface {
	Create(ctx context.Context, r Reservation) (Reservation, error)
	GetByID(ctx context.Context, id string) (Reservation, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Reservation, error)
	UpdateStatus(ctx context.Context, id, status string) (Reservation, error)
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) error
}

// Service owns table bookings.
type Service struct {
	Q         Querier
	Events    Emitter
	MinNotice time.Duration
	MaxParty  int32
	Log       zerolog.Logger
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Book validates and creates a reservation.
func (s *Service) Book(ctx context.Context, userID string, partySize int32, at time.Time, notes string) (Reservation, error) {
	now := s.now()
	if !at.After(now) {
		return Reservation{}, ErrPastDate
	}
	if at.Sub(now) < s.MinNotice {
		return Reservation{}, ErrTooSoon
	}
	if s.MaxParty > 0 && partySize > s.MaxParty {
		return Reservation{}, ErrPartyTooBig
	}
	r, err := s.Q.Create(ctx, Reservation{
		UserID:     userID,
		PartySize:  partySize,
		ReservedAt: at,
		Notes:      notes,
	})
	if err != nil {
		return Reservation{}, err
	}
	if s.Events != nil {
		if err := s.Events.Emit(ctx, "reservation.created", r.ID, r); err != nil {
			s.Log.Error().Err(err).Str("reservation_id", r.ID).Msg("emit reservation.created")
		}
	}
	return r, nil
}

// List returns the caller's reservations.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Reservation, error) {
	return s.Q.ListByUser(ctx, userID, limit, offset)
}

// Cancel releases a confirmed booking.
func (s *Service) Cancel(ctx context.Context, id, userID string) (Reservation, error) {
	r, err := s.Q.GetByID(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if r.UserID != userID {
		return Reservation{}, ErrForbidden
	}
	if r.Status != StatusConfirmed {
		return Reservation{}, ErrNotCancelable
	}
	return s.Q.UpdateStatus(ctx, id, StatusCancelled)
}
