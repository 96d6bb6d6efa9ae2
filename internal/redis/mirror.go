package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"driftchat/internal/events"
	drift_errors "driftchat/pkg/errors"
)

const (
	mirrorKeyPrefix = "mirror:msg:"
	mirrorTTL       = 7 * 24 * time.Hour
)

// MirrorStore holds the live-channel copies of durable messages. The store
// is a convenience cache; the database row stays authoritative and the docs
// expire on their own.
type MirrorStore struct {
	client *goredis.Client
}

func NewMirrorStore(client *goredis.Client) *MirrorStore {
	return &MirrorStore{client: client}
}

func (m *MirrorStore) WriteMessageDoc(ctx context.Context, doc events.MessageDoc) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, mirrorKeyPrefix+doc.MirrorID, data, mirrorTTL).Err()
}

func (m *MirrorStore) GetMessageDoc(ctx context.Context, mirrorID string) (events.MessageDoc, error) {
	data, err := m.client.Get(ctx, mirrorKeyPrefix+mirrorID).Result()
	if err == goredis.Nil {
		return events.MessageDoc{}, drift_errors.ErrNotFound
	}
	if err != nil {
		return events.MessageDoc{}, err
	}

	var doc events.MessageDoc
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return events.MessageDoc{}, err
	}
	return doc, nil
}

// MarkDocSeen flips the seen flag on a mirrored doc in place, keeping the
// remaining TTL.
func (m *MirrorStore) MarkDocSeen(ctx context.Context, mirrorID string) error {
	doc, err := m.GetMessageDoc(ctx, mirrorID)
	if err != nil {
		return err
	}
	doc.IsSeen = true

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, mirrorKeyPrefix+mirrorID, data, goredis.KeepTTL).Err()
}
