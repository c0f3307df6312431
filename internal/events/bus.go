package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Topics published by the storefront.
const (
	TopicOrderCreated       = "order.created"
	TopicOrderSettled       = "order.settled"
	TopicReservationCreated = "reservation.created"
)

// Event is one persisted domain event.
type Event struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Store persists events. *PgStore satisfies it.
type Store interface {
	InsertDomainEvent(ctx context.Context, topic, aggregateID string, payload []byte) error
}

// Subscriber receives events after they are stored. Subscribers must not
// block; slow work belongs on the task queue.
type Subscriber func(ctx context.Context, e Event)

// Bus writes every event to the store, then fans it out to in-process
// subscribers. Delivery is best effort; the store is the source of truth.
type Bus struct {
	Store Store
	Log   zerolog.Logger

	mu   sync.RWMutex
	subs map[string][]Subscriber
}

// Subscribe registers a handler for one topic.
func (b *Bus) Subscribe(topic string, fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = map[string][]Subscriber{}
	}
	b.subs[topic] = append(b.subs[topic], fn)
}

// Emit stores and fans out one event.
func (b *Bus) Emit(ctx context.Context, topic, aggregateID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if b.Store != nil {
		if err := b.Store.InsertDomainEvent(ctx, topic, aggregateID, body); err != nil {
			return err
		}
	}
	e := Event{Topic: topic, AggregateID: aggregateID, Payload: body, OccurredAt: time.Now()}
	b.mu.RLock()
	subs := b.subs[topic]
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ctx, e)
	}
	return nil
}

// PgStore persists events to the domain_events table.
type PgStore struct {
	Pool *pgxpool.Pool
}

func (s *PgStore) InsertDomainEvent(ctx context.Context, topic, aggregateID string, payload []byte) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO domain_events (topic, aggregate_id, payload)
		VALUES ($1, $2, $3)`, topic, aggregateID, payload)
	return err
}

// List pages stored events for ops tooling, newest first.
func (s *PgStore) List(ctx context.Context, topic string, limit, offset int) ([]Event, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id::text, topic, aggregate_id::text, payload, occurred_at
		FROM domain_events
		WHERE ($1 = '' OR topic = $1)
		ORDER BY occurred_at DESC LIMIT $2 OFFSET $3`, topic, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Topic, &e.AggregateID, &e.Payload, &e.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
