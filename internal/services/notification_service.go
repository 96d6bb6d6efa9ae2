package services

import (
	"context"

	"github.com/google/uuid"

	"driftchat/internal/domain"
)

// NotificationBox is the per-user notification mailbox in the live channel.
type NotificationBox interface {
	List(ctx context.Context, receiverID uuid.UUID) ([]domain.Notification, error)
	MarkRead(ctx context.Context, receiverID uuid.UUID, notificationID string) error
	Clear(ctx context.Context, receiverID uuid.UUID) error
}

type NotificationService struct {
	box NotificationBox
}

func NewNotificationService(box NotificationBox) *NotificationService {
	return &NotificationService{box: box}
}

// List returns the caller's notifications, newest first. Missed ones are
// appended by the mirror processor; this is the catch-up read after a
// reconnect.
func (s *NotificationService) List(ctx context.Context, selfID uuid.UUID) ([]domain.Notification, error) {
	return s.box.List(ctx, selfID)
}

// MarkRead flips a notification's read flag. Reading a notification twice
// is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, selfID uuid.UUID, notificationID string) error {
	return s.box.MarkRead(ctx, selfID, notificationID)
}

// Clear empties the caller's mailbox.
func (s *NotificationService) Clear(ctx context.Context, selfID uuid.UUID) error {
	return s.box.Clear(ctx, selfID)
}
