package tasks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/order"
)

type stubOrders struct{ o order.Order }

func (s *stubOrders) GetByID(_ context.Context, id string) (order.Order, error) {
	return s.o, nil
}

type stubUsers struct{ email string }

func (s *stubUsers) EmailFor(_ context.Context, userID string) (string, error) {
	return s.email, nil
}

type stubCrediter struct {
	calls []LoyaltyCreditPayload
}

func (s *stubCrediter) CreditOrder(_ context.Context, userID, orderID string, points int64) error {
	s.calls = append(s.calls, LoyaltyCreditPayload{UserID: userID, OrderID: orderID, Points: points})
	return nil
}

type recordingSender struct {
	to, subject, body string
}

func (s *recordingSender) Send(_ context.Context, to, subject, body string) error {
	s.to, s.subject, s.body = to, subject, body
	return nil
}

func TestHandleOrderConfirmation(t *testing.T) {
	sender := &recordingSender{}
	h := &Handlers{
		Orders: &stubOrders{o: order.Order{
			ID:         "o-1",
			Currency:   "IDR",
			GrandTotal: decimal.RequireFromString("1312.50"),
		}},
		Users:  &stubUsers{email: "budi@example.com"},
		Mailer: sender,
		Log:    zerolog.Nop(),
	}

	body, err := json.Marshal(OrderConfirmationPayload{OrderID: "o-1", UserID: "u-1"})
	require.NoError(t, err)
	err = h.HandleOrderConfirmation(context.Background(), asynq.NewTask(TypeOrderConfirmation, body))
	require.NoError(t, err)
	require.Equal(t, "budi@example.com", sender.to)
	require.Contains(t, sender.subject, "o-1")
	require.Contains(t, sender.body, "1312.50 IDR")
}

func TestHandleLoyaltyCredit(t *testing.T) {
	cred := &stubCrediter{}
	h := &Handlers{Loyalty: cred, Log: zerolog.Nop()}

	body, err := json.Marshal(LoyaltyCreditPayload{UserID: "u-1", OrderID: "o-1", Points: 310})
	require.NoError(t, err)
	err = h.HandleLoyaltyCredit(context.Background(), asynq.NewTask(TypeLoyaltyCredit, body))
	require.NoError(t, err)
	require.Equal(t, []LoyaltyCreditPayload{{UserID: "u-1", OrderID: "o-1", Points: 310}}, cred.calls)
}

func TestHandlersRejectBadPayload(t *testing.T) {
	h := &Handlers{Log: zerolog.Nop()}

	err := h.HandleLoyaltyCredit(context.Background(), asynq.NewTask(TypeLoyaltyCredit, []byte("{")))
	require.Error(t, err)
}
