package domain

import (
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "PENDING"
	OutboxCompleted OutboxStatus = "COMPLETED"
	OutboxFailed    OutboxStatus = "FAILED"
)

// OutboxEvent stores a live-channel publish intent persisted in the same
// transaction as the durable write it mirrors. A background processor
// publishes pending events and retries transient failures, so a mirror
// outage delays the live echo instead of losing it.
type OutboxEvent struct {
	ID            uuid.UUID    `json:"id"`
	EventType     string       `json:"eventType"`
	AggregateType string       `json:"aggregateType"`
	AggregateID   string       `json:"aggregateId"`
	Payload       []byte       `json:"payload"`
	Status        OutboxStatus `json:"status"`
	RetryCount    int          `json:"retryCount"`
	Error         string       `json:"error,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	ProcessedAt   *time.Time   `json:"processedAt,omitempty"`
}
