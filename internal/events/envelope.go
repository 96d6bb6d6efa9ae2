package events

import (
	"encoding/json"
	"time"
)

type Envelope struct {
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}
