package services

import (
	"context"

	"github.com/google/uuid"

	drift_errors "driftchat/pkg/errors"
)

// PresenceTracker is the write side of the presence store.
type PresenceTracker interface {
	SetOnline(ctx context.Context, userID uuid.UUID) error
	SetOffline(ctx context.Context, userID uuid.UUID) error
	Heartbeat(ctx context.Context, userID uuid.UUID) error
}

// TypingBox holds per-recipient typing indicators.
type TypingBox interface {
	Start(ctx context.Context, senderID, recipientID uuid.UUID) error
	Stop(ctx context.Context, senderID, recipientID uuid.UUID) error
}

type PresenceService struct {
	presence PresenceTracker
	typing   TypingBox
}

func NewPresenceService(presence PresenceTracker, typing TypingBox) *PresenceService {
	return &PresenceService{presence: presence, typing: typing}
}

// Connected marks a user online when their live session attaches.
func (s *PresenceService) Connected(ctx context.Context, userID uuid.UUID) error {
	return s.presence.SetOnline(ctx, userID)
}

// Disconnected marks a user offline when their last session drops.
func (s *PresenceService) Disconnected(ctx context.Context, userID uuid.UUID) error {
	return s.presence.SetOffline(ctx, userID)
}

func (s *PresenceService) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	return s.presence.Heartbeat(ctx, userID)
}

func (s *PresenceService) StartTyping(ctx context.Context, selfID, recipientID uuid.UUID) error {
	if selfID == recipientID {
		return drift_errors.ErrValidation
	}
	return s.typing.Start(ctx, selfID, recipientID)
}

func (s *PresenceService) StopTyping(ctx context.Context, selfID, recipientID uuid.UUID) error {
	if selfID == recipientID {
		return drift_errors.ErrValidation
	}
	return s.typing.Stop(ctx, selfID, recipientID)
}
