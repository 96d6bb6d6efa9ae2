package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
)

type Subscriber struct {
	client *goredis.Client
}

func NewSubscriber(client *goredis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe delivers every message on the matched channels to handler until
// ctx is cancelled or the connection fails. Patterns are glob-style.
func (s *Subscriber) Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error {
	sub := s.client.PSubscribe(ctx, channels...)
	defer sub.Close()

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		handler(msg.Channel, []byte(msg.Payload))
	}
}
