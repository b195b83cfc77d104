package model

import (
	"encoding/json"
	"time"
)

const EventTypeSaleRecorded = "sale.recorded"

type OutboxEvent struct {
	ID          string          `db:"id"`
	AggregateID string          `db:"aggregate_id"`
	EventType   string          `db:"event_type"`
	Payload     json.RawMessage `db:"payload"`
	CreatedAt   time.Time       `db:"created_at"`
	ProcessedAt *time.Time      `db:"processed_at"`
}
