package domain

import (
	"encoding/json"
	"time"
)

const CurrentEventSchemaVersion = 1

const (
	EventValidationAccepted = "validation.accepted"
	EventValidationRejected = "validation.rejected"
)

type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	RuleSet       string          `json:"rule_set"`
	RunID         string          `json:"run_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Actor         string          `json:"actor"`
	Payload       json.RawMessage `json:"payload"`
}

type OutboxMessage struct {
	EventID     string
	Topic       string
	PayloadJSON json.RawMessage
}

type OutboxEvent struct {
	ID            int64
	EventID       string
	Topic         string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}
