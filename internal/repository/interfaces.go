package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"driftchat/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	ListOthers(ctx context.Context, selfID uuid.UUID) ([]domain.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetResetToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error
	GetByResetToken(ctx context.Context, token string) (domain.User, error)
	GetByVerificationToken(ctx context.Context, token string) (domain.User, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
}

type ConversationRepository interface {
	// FindOrCreateDirect returns the single direct conversation for the
	// unordered pair, creating it when absent. The second return reports
	// whether a new conversation was created.
	FindOrCreateDirect(ctx context.Context, a, b uuid.UUID) (domain.Conversation, bool, error)
	CreateGroup(ctx context.Context, conv *domain.Conversation, participantIDs []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	ParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	Touch(ctx context.Context, conversationID uuid.UUID) error
	// DeleteWithMessages removes the conversation and every message it owns.
	DeleteWithMessages(ctx context.Context, conversationID uuid.UUID) error
}

type MessageRepository interface {
	// CreateWithOutbox inserts the message and its live-channel publish
	// intents in one transaction.
	CreateWithOutbox(ctx context.Context, msg *domain.Message, intents []domain.OutboxEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error)
	CountByConversation(ctx context.Context, conversationID uuid.UUID) (int64, error)
	// MarkSeen flips the seen flag and enqueues the intent only when the
	// flag actually changed; it reports whether a flip happened.
	MarkSeen(ctx context.Context, id uuid.UUID, intent domain.OutboxEvent) (bool, error)
	SetMirrorDocID(ctx context.Context, id uuid.UUID, mirrorDocID string) error
}

type CallRepository interface {
	CreateRecord(ctx context.Context, rec *domain.CallRecord) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.CallRecord, error)
}

type OutboxRepository interface {
	GetPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	// MarkFailed records a failed attempt. Terminal failures leave the
	// event in FAILED; otherwise it stays PENDING for another pass.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, terminal bool) error
}
