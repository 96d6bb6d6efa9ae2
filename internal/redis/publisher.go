package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"driftchat/internal/events"
)

type Publisher struct {
	client *goredis.Client
}

func NewPublisher(client *goredis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// PublishEvent wraps the payload in an envelope and publishes it on the
// channel derived from the aggregate.
func (p *Publisher) PublishEvent(ctx context.Context, eventType, aggregateType, aggregateID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := events.Envelope{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    time.Now().UTC(),
		Payload:       raw,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.Publish(ctx, events.RouteChannel(env), data)
}
