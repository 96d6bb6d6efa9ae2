package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"driftchat/internal/events"
)

// Redis keys for presence
const (
	presenceKeyPrefix = "presence:"          // JSON presence doc per user, TTL'd
	presenceOnlineSet = "presence:online"    // Set of online user IDs
	presenceHeartbeat = "presence:heartbeat" // Sorted set of last heartbeat times
)

// PresenceStore tracks who is online. Each online user holds a TTL'd doc
// that decays to offline if heartbeats stop, which covers crashed clients
// that never sent an explicit goodbye.
type PresenceStore struct {
	client    *goredis.Client
	publisher *Publisher
	ttl       time.Duration
}

func NewPresenceStore(client *goredis.Client, publisher *Publisher, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 90 * time.Second
	}
	return &PresenceStore{client: client, publisher: publisher, ttl: ttl}
}

// SetOnline marks a user online. The TTL'd doc is written before the online
// set and the announcement, so the expiry fallback is armed before anyone
// can observe the user as online.
func (p *PresenceStore) SetOnline(ctx context.Context, userID uuid.UUID) error {
	now := time.Now().UTC()
	doc := events.PresenceDoc{UserID: userID, IsOnline: true, LastChanged: now}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := p.client.Set(ctx, presenceKeyPrefix+userID.String(), data, p.ttl).Err(); err != nil {
		return err
	}

	pipe := p.client.Pipeline()
	pipe.SAdd(ctx, presenceOnlineSet, userID.String())
	pipe.ZAdd(ctx, presenceHeartbeat, goredis.Z{Score: float64(now.Unix()), Member: userID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return p.announce(ctx, doc)
}

// SetOffline marks a user offline and announces it.
func (p *PresenceStore) SetOffline(ctx context.Context, userID uuid.UUID) error {
	pipe := p.client.Pipeline()
	pipe.Del(ctx, presenceKeyPrefix+userID.String())
	pipe.SRem(ctx, presenceOnlineSet, userID.String())
	pipe.ZRem(ctx, presenceHeartbeat, userID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return p.announce(ctx, events.PresenceDoc{UserID: userID, IsOnline: false, LastChanged: time.Now().UTC()})
}

// Heartbeat refreshes the TTL so an active session never decays.
func (p *PresenceStore) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	pipe := p.client.Pipeline()
	pipe.Expire(ctx, presenceKeyPrefix+userID.String(), p.ttl)
	pipe.ZAdd(ctx, presenceHeartbeat, goredis.Z{Score: float64(time.Now().Unix()), Member: userID.String()})
	_, err := pipe.Exec(ctx)
	return err
}

func (p *PresenceStore) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	return p.client.SIsMember(ctx, presenceOnlineSet, userID.String()).Result()
}

func (p *PresenceStore) OnlineUsers(ctx context.Context) ([]string, error) {
	return p.client.SMembers(ctx, presenceOnlineSet).Result()
}

// ReapStale flips users whose heartbeat is older than maxAge to offline.
// It catches entries left in the online set after the TTL'd doc expired.
func (p *PresenceStore) ReapStale(ctx context.Context, maxAge time.Duration) (int, error) {
	threshold := time.Now().Add(-maxAge).Unix()
	stale, err := p.client.ZRangeByScore(ctx, presenceHeartbeat, &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(threshold, 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	for _, raw := range stale {
		userID, err := uuid.Parse(raw)
		if err != nil {
			p.client.ZRem(ctx, presenceHeartbeat, raw)
			continue
		}
		if err := p.SetOffline(ctx, userID); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

func (p *PresenceStore) announce(ctx context.Context, doc events.PresenceDoc) error {
	if p.publisher == nil {
		return nil
	}
	eventType := events.EventTypePresenceOffline
	if doc.IsOnline {
		eventType = events.EventTypePresenceOnline
	}
	return p.publisher.PublishEvent(ctx, eventType, events.AggregateTypePresence, doc.UserID.String(), doc)
}
