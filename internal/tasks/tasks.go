package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// Task type names. The prefix doubles as the routing key in asynq's UI.
const (
	TypeOrderConfirmation = "email:order_confirmation"
	TypeLoyaltyCredit     = "loyalty:credit"
)

// Queue names by priority.
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// OrderConfirmationPayload asks the worker to send the order email.
type OrderConfirmationPayload struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId"`
}

// LoyaltyCreditPayload asks the worker to credit points after settlement.
type LoyaltyCreditPayload struct {
	UserID  string `json:"userId"`
	OrderID string `json:"orderId"`
	Points  int64  `json:"points"`
}

// Client enqueues storefront background work.
type Client struct {
	A *asynq.Client
}

// EnqueueOrderConfirmation schedules the confirmation email.
func (c *Client) EnqueueOrderConfirmation(ctx context.Context, orderID, userID string) error {
	body, err := json.Marshal(OrderConfirmationPayload{OrderID: orderID, UserID: userID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeOrderConfirmation, body)
	_, err = c.A.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second))
	return err
}

// EnqueueLoyaltyCredit schedules the post-settlement points credit. The
// task id is derived from the order so a double enqueue collapses.
func (c *Client) EnqueueLoyaltyCredit(ctx context.Context, userID, orderID string, points int64) error {
	body, err := json.Marshal(LoyaltyCreditPayload{UserID: userID, OrderID: orderID, Points: points})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeLoyaltyCredit, body)
	_, err = c.A.EnqueueContext(ctx, task,
		asynq.Queue(QueueCritical),
		asynq.TaskID("loyalty-credit-"+orderID),
		asynq.MaxRetry(10),
		asynq.Timeout(30*time.Second))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}
