package websocket

import (
	"context"

	"driftchat/internal/events"
)

// RedisBridge pipes live-channel traffic from Redis pub/sub into the hub.
// One bridge per process covers every connected client.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

func (b *RedisBridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, []string{"channel:*"}, func(channel string, payload []byte) {
		b.hub.Broadcast(channel, payload)
	})
}
