package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"driftchat/internal/domain"
	"driftchat/internal/events"
	drift_errors "driftchat/pkg/errors"
)

// Redis key prefixes for the call mailbox
const (
	callBoxKeyPrefix = "callbox:"     // JSON session doc keyed by receiver
	callSeqKeyPrefix = "callbox:seq:" // Monotonic counter per receiver
	callBoxTTL       = 2 * time.Minute
)

// CallBoxStore holds the single-slot call signaling mailbox per receiver.
// Placing a new session overwrites whatever occupied the slot; the sequence
// number lets the displaced caller recognize the replacement.
type CallBoxStore struct {
	client    *goredis.Client
	publisher *Publisher
}

func NewCallBoxStore(client *goredis.Client, publisher *Publisher) *CallBoxStore {
	return &CallBoxStore{client: client, publisher: publisher}
}

// Place writes a ringing session into the receiver's mailbox, stamping it
// with the next sequence number, and announces it on the call channel.
func (s *CallBoxStore) Place(ctx context.Context, session domain.CallSession) (domain.CallSession, error) {
	seq, err := s.client.Incr(ctx, callSeqKeyPrefix+session.ReceiverID.String()).Result()
	if err != nil {
		return domain.CallSession{}, err
	}
	session.Seq = seq
	session.Status = domain.CallStatusRinging
	session.CreatedAt = time.Now().UTC()

	if err := s.write(ctx, session); err != nil {
		return domain.CallSession{}, err
	}
	return session, s.publish(ctx, events.EventTypeCallRinging, session)
}

// Get returns the current mailbox occupant, or ErrNotFound when the slot
// is empty.
func (s *CallBoxStore) Get(ctx context.Context, receiverID uuid.UUID) (domain.CallSession, error) {
	data, err := s.client.Get(ctx, callBoxKeyPrefix+receiverID.String()).Result()
	if err == goredis.Nil {
		return domain.CallSession{}, drift_errors.ErrNotFound
	}
	if err != nil {
		return domain.CallSession{}, err
	}

	var session domain.CallSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return domain.CallSession{}, err
	}
	return session, nil
}

// Accept transitions the mailbox occupant from ringing to accepted. Only a
// ringing session can be accepted.
func (s *CallBoxStore) Accept(ctx context.Context, receiverID uuid.UUID) (domain.CallSession, error) {
	session, err := s.Get(ctx, receiverID)
	if err != nil {
		return domain.CallSession{}, err
	}
	if session.Status != domain.CallStatusRinging {
		return domain.CallSession{}, drift_errors.ErrInvalidTransition
	}

	session.Status = domain.CallStatusAccepted
	if err := s.write(ctx, session); err != nil {
		return domain.CallSession{}, err
	}
	return session, s.publish(ctx, events.EventTypeCallAccepted, session)
}

// Clear empties the mailbox and announces the removal, echoing the cleared
// session's sequence so listeners holding an older seq can tell a hangup of
// their call apart from churn caused by a replacement.
func (s *CallBoxStore) Clear(ctx context.Context, receiverID uuid.UUID) (domain.CallSession, error) {
	session, err := s.Get(ctx, receiverID)
	if err != nil {
		return domain.CallSession{}, err
	}
	if err := s.client.Del(ctx, callBoxKeyPrefix+receiverID.String()).Err(); err != nil {
		return domain.CallSession{}, err
	}
	return session, s.publish(ctx, events.EventTypeCallCleared, session)
}

func (s *CallBoxStore) write(ctx context.Context, session domain.CallSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, callBoxKeyPrefix+session.ReceiverID.String(), data, callBoxTTL).Err()
}

func (s *CallBoxStore) publish(ctx context.Context, eventType string, session domain.CallSession) error {
	if s.publisher == nil {
		return nil
	}
	doc := events.CallBoxDoc{
		Seq:        session.Seq,
		CallerID:   session.CallerID,
		CallerName: session.CallerName,
		ReceiverID: session.ReceiverID,
		CallType:   string(session.CallType),
		Status:     string(session.Status),
		RoomName:   session.RoomName,
		CreatedAt:  session.CreatedAt,
	}
	return s.publisher.PublishEvent(ctx, eventType, events.AggregateTypeCall, session.ReceiverID.String(), doc)
}
