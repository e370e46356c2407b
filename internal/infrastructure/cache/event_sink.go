package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/storage/postgres"
)

// EventsChannel is the pub/sub channel ledger events are relayed to.
const EventsChannel = "stock-events"

// EventEnvelope is the message published for every outbox row.
type EventEnvelope struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	TenantID    string          `json:"tenantId"`
	AggregateID string          `json:"aggregateId"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Payload     json.RawMessage `json:"payload"`
}

// EventSink publishes outbox messages to Redis pub/sub.
type EventSink struct {
	rdb     *redis.Client
	channel string
}

var _ postgres.OutboxHandler = (*EventSink)(nil)

// NewEventSink creates a sink publishing to channel.
func NewEventSink(rdb *redis.Client, channel string) *EventSink {
	return &EventSink{rdb: rdb, channel: channel}
}

// Handle publishes one message.
func (s *EventSink) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	raw, err := encodeEnvelope(msg)
	if err != nil {
		return err
	}
	if err := s.rdb.Publish(ctx, s.channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", msg.EventType, err)
	}
	return nil
}

func encodeEnvelope(msg *postgres.OutboxMessage) ([]byte, error) {
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	raw, err := json.Marshal(EventEnvelope{
		ID:          msg.ID.String(),
		Type:        msg.EventType,
		TenantID:    msg.TenantID,
		AggregateID: msg.AggregateID.String(),
		OccurredAt:  msg.CreatedAt.UTC(),
		Payload:     payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode event envelope: %w", err)
	}
	return raw, nil
}
