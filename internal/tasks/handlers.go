package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-resto/internal/notify"
	"github.com/noah-isme/backend-resto/internal/order"
)

// OrderSource loads placed orders.
type OrderSource interface {
	GetByID(ctx context.Context, id string) (order.Order, error)
}

// EmailLookup resolves a user id to their address.
type EmailLookup interface {
	EmailFor(ctx context.Context, userID string) (string, error)
}

// Crediter applies loyalty points. Must be idempotent per order.
type Crediter interface {
	CreditOrder(ctx context.Context, userID, orderID string, points int64) error
}

// Handlers processes the storefront's background tasks.
type Handlers struct {
	Orders  OrderSource
	Users   EmailLookup
	Loyalty Crediter
	Mailer  notify.Sender
	Log     zerolog.Logger
}

// Mux routes task types to their handlers.
func (h *Handlers) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeOrderConfirmation, h.HandleOrderConfirmation)
	mux.HandleFunc(TypeLoyaltyCredit, h.HandleLoyaltyCredit)
	return mux
}

// HandleOrderConfirmation sends the post-checkout email.
func (h *Handlers) HandleOrderConfirmation(ctx context.Context, t *asynq.Task) error {
	var p OrderConfirmationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("order confirmation payload: %w", err)
	}
	o, err := h.Orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", p.OrderID, err)
	}
	to, err := h.Users.EmailFor(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("lookup email for %s: %w", p.UserID, err)
	}
	subject, body := notify.OrderConfirmationBody(o.ID, o.GrandTotal.StringFixed(2), o.Currency)
	if err := h.Mailer.Send(ctx, to, subject, body); err != nil {
		return fmt.Errorf("send confirmation: %w", err)
	}
	h.Log.Info().Str("order_id", o.ID).Msg("order confirmation sent")
	return nil
}

// HandleLoyaltyCredit applies the projected points after settlement.
func (h *Handlers) HandleLoyaltyCredit(ctx context.Context, t *asynq.Task) error {
	var p LoyaltyCreditPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("loyalty credit payload: %w", err)
	}
	if err := h.Loyalty.CreditOrder(ctx, p.UserID, p.OrderID, p.Points); err != nil {
		return fmt.Errorf("credit %d points for order %s: %w", p.Points, p.OrderID, err)
	}
	h.Log.Info().Str("order_id", p.OrderID).Int64("points", p.Points).Msg("loyalty points credited")
	return nil
}
