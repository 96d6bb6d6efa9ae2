package events

import "context"

type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscriber delivers raw payloads for every message on the matched
// channels. Patterns are glob-style ("channel:call:*"). Subscribe blocks
// until ctx is cancelled or the underlying connection fails.
type Subscriber interface {
	Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error
}
