package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubQuerier struct {
	byID map[string]Reservation
	seq  int
}

func newStubQuerier() *stubQuerier {
	return &stubQuerier{byID: map[string]Reservation{}}
}

func (s *stubQuerier) Create(_ context.Context, r Reservation) (Reservation, error) {
	s.seq++
	r.ID = "r-1"
	r.Status = StatusConfirmed
	s.byID[r.ID] = r
	return r, nil
}

func (s *stubQuerier) GetByID(_ context.Context, id string) (Reservation, error) {
	r, ok := s.byID[id]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return r, nil
}

func (s *stubQuerier) ListByUser(_ context.Context, userID string, limit, offset int) ([]Reservation, error) {
	var out []Reservation
	for _, r := range s.byID {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubQuerier) UpdateStatus(_ context.Context, id, status string) (Reservation, error) {
	r, ok := s.byID[id]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	r.Status = status
	s.byID[id] = r
	return r, nil
}

type stubEmitter struct {
	topics []string
}

func (s *stubEmitter) Emit(_ context.Context, topic, _ string, _ any) error {
	s.topics = append(s.topics, topic)
	return nil
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(q *stubQuerier, e *stubEmitter) *Service {
	svc := &Service{
		Q:         q,
		MinNotice: 2 * time.Hour,
		MaxParty:  12,
		Log:       zerolog.Nop(),
		Now:       func() time.Time { return testNow },
	}
	if e != nil {
		svc.Events = e
	}
	return svc
}

func TestBook(t *testing.T) {
	q := newStubQuerier()
	e := &stubEmitter{}
	svc := newTestService(q, e)

	r, err := svc.Book(context.Background(), "u-1", 4, testNow.Add(3*time.Hour), "window seat")
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, r.Status)
	require.Equal(t, []string{"reservation.created"}, e.topics)
}

func TestBookValidation(t *testing.T) {
	svc := newTestService(newStubQuerier(), nil)

	_, err := svc.Book(context.Background(), "u-1", 4, testNow.Add(-time.Hour), "")
	require.ErrorIs(t, err, ErrPastDate)

	_, err = svc.Book(context.Background(), "u-1", 4, testNow.Add(30*time.Minute), "")
	require.ErrorIs(t, err, ErrTooSoon)

	_, err = svc.Book(context.Background(), "u-1", 20, testNow.Add(3*time.Hour), "")
	require.ErrorIs(t, err, ErrPartyTooBig)
}

func TestCancel(t *testing.T) {
	q := newStubQuerier()
	svc := newTestService(q, nil)

	r, err := svc.Book(context.Background(), "u-1", 2, testNow.Add(3*time.Hour), "")
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), r.ID, "u-1")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Cancel(context.Background(), r.ID, "u-1")
	require.ErrorIs(t, err, ErrNotCancelable)
}

func TestCancelOwnership(t *testing.T) {
	q := newStubQuerier()
	svc := newTestService(q, nil)

	r, err := svc.Book(context.Background(), "u-1", 2, testNow.Add(3*time.Hour), "")
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), r.ID, "u-2")
	require.ErrorIs(t, err, ErrForbidden)
}
