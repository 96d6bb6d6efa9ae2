package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"driftchat/internal/events"
)

const (
	typingKeyPrefix = "typing:" // Doc keyed by the recipient, presence means "someone is typing to you"
	typingTTL       = 6 * time.Second
)

// TypingStore holds per-recipient typing indicators. The short TTL makes a
// crashed sender's indicator disappear on its own.
type TypingStore struct {
	client    *goredis.Client
	publisher *Publisher
}

func NewTypingStore(client *goredis.Client, publisher *Publisher) *TypingStore {
	return &TypingStore{client: client, publisher: publisher}
}

func (t *TypingStore) Start(ctx context.Context, senderID, recipientID uuid.UUID) error {
	doc := events.TypingDoc{SenderID: senderID, RecipientID: recipientID, IsTyping: true}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := t.client.Set(ctx, typingKeyPrefix+recipientID.String(), data, typingTTL).Err(); err != nil {
		return err
	}
	return t.publish(ctx, events.EventTypeTypingStarted, doc)
}

func (t *TypingStore) Stop(ctx context.Context, senderID, recipientID uuid.UUID) error {
	if err := t.client.Del(ctx, typingKeyPrefix+recipientID.String()).Err(); err != nil {
		return err
	}
	return t.publish(ctx, events.EventTypeTypingStopped, events.TypingDoc{
		SenderID: senderID, RecipientID: recipientID, IsTyping: false,
	})
}

// Get returns the current typing doc for a recipient, or false when nobody
// is typing to them.
func (t *TypingStore) Get(ctx context.Context, recipientID uuid.UUID) (events.TypingDoc, bool, error) {
	data, err := t.client.Get(ctx, typingKeyPrefix+recipientID.String()).Result()
	if err == goredis.Nil {
		return events.TypingDoc{}, false, nil
	}
	if err != nil {
		return events.TypingDoc{}, false, err
	}

	var doc events.TypingDoc
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return events.TypingDoc{}, false, err
	}
	return doc, true, nil
}

func (t *TypingStore) publish(ctx context.Context, eventType string, doc events.TypingDoc) error {
	if t.publisher == nil {
		return nil
	}
	return t.publisher.PublishEvent(ctx, eventType, events.AggregateTypeTyping, doc.RecipientID.String(), doc)
}
