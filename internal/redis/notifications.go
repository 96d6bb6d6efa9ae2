package redis

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"driftchat/internal/domain"
	drift_errors "driftchat/pkg/errors"
)

const (
	notificationsKeyPrefix = "notifications:" // Hash of notification ID -> JSON doc per receiver
	notificationsTTL       = 30 * 24 * time.Hour
)

// NotificationStore keeps per-user new-message notifications in the live
// channel. They are ephemeral by design; the whole mailbox expires after a
// month of inactivity.
type NotificationStore struct {
	client *goredis.Client
}

func NewNotificationStore(client *goredis.Client) *NotificationStore {
	return &NotificationStore{client: client}
}

func (n *NotificationStore) Append(ctx context.Context, notif domain.Notification) error {
	data, err := json.Marshal(notif)
	if err != nil {
		return err
	}

	key := notificationsKeyPrefix + notif.ReceiverID.String()
	pipe := n.client.Pipeline()
	pipe.HSet(ctx, key, notif.ID, data)
	pipe.Expire(ctx, key, notificationsTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// List returns a user's notifications, newest first.
func (n *NotificationStore) List(ctx context.Context, receiverID uuid.UUID) ([]domain.Notification, error) {
	raw, err := n.client.HGetAll(ctx, notificationsKeyPrefix+receiverID.String()).Result()
	if err != nil {
		return nil, err
	}

	notifs := make([]domain.Notification, 0, len(raw))
	for _, data := range raw {
		var notif domain.Notification
		if err := json.Unmarshal([]byte(data), &notif); err != nil {
			continue
		}
		notifs = append(notifs, notif)
	}
	sort.Slice(notifs, func(i, j int) bool {
		return notifs[i].CreatedAt.After(notifs[j].CreatedAt)
	})
	return notifs, nil
}

func (n *NotificationStore) MarkRead(ctx context.Context, receiverID uuid.UUID, notificationID string) error {
	key := notificationsKeyPrefix + receiverID.String()
	data, err := n.client.HGet(ctx, key, notificationID).Result()
	if err == goredis.Nil {
		return drift_errors.ErrNotFound
	}
	if err != nil {
		return err
	}

	var notif domain.Notification
	if err := json.Unmarshal([]byte(data), &notif); err != nil {
		return err
	}
	notif.IsRead = true

	updated, err := json.Marshal(notif)
	if err != nil {
		return err
	}
	return n.client.HSet(ctx, key, notificationID, updated).Err()
}

func (n *NotificationStore) Clear(ctx context.Context, receiverID uuid.UUID) error {
	return n.client.Del(ctx, notificationsKeyPrefix+receiverID.String()).Err()
}
