package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"driftchat/internal/domain"
	"driftchat/internal/events"
	"driftchat/internal/repository"
	drift_errors "driftchat/pkg/errors"
	"driftchat/pkg/logger"
)

// EventPublisher publishes a live-channel event outside the outbox path.
// Used for events that need no durable mirror, where losing one on a
// live-channel hiccup is acceptable.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, aggregateType, aggregateID string, payload any) error
}

type ConversationService struct {
	convRepo  repository.ConversationRepository
	userRepo  repository.UserRepository
	publisher EventPublisher
	log       *logger.Logger
}

func NewConversationService(convRepo repository.ConversationRepository, userRepo repository.UserRepository, publisher EventPublisher, log *logger.Logger) *ConversationService {
	return &ConversationService{convRepo: convRepo, userRepo: userRepo, publisher: publisher, log: log}
}

// OpenDirect returns the direct conversation between the caller and the
// other user, creating it on first contact. Repeated calls for the same
// pair always land on the same conversation.
func (s *ConversationService) OpenDirect(ctx context.Context, selfID, otherID uuid.UUID) (domain.Conversation, error) {
	if selfID == otherID {
		return domain.Conversation{}, drift_errors.ErrValidation
	}
	if _, err := s.userRepo.GetByID(ctx, otherID); err != nil {
		return domain.Conversation{}, err
	}

	conv, created, err := s.convRepo.FindOrCreateDirect(ctx, selfID, otherID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if created {
		s.announce(ctx, events.EventTypeConversationCreated, conv)
	}
	return conv, nil
}

func (s *ConversationService) CreateGroup(ctx context.Context, adminID uuid.UUID, name, avatarURL string, memberIDs []uuid.UUID) (domain.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(memberIDs) == 0 {
		return domain.Conversation{}, drift_errors.ErrValidation
	}

	seen := map[uuid.UUID]bool{adminID: true}
	participants := []uuid.UUID{adminID}
	for _, id := range memberIDs {
		if seen[id] {
			continue
		}
		if _, err := s.userRepo.GetByID(ctx, id); err != nil {
			return domain.Conversation{}, err
		}
		seen[id] = true
		participants = append(participants, id)
	}
	if len(participants) < 2 {
		return domain.Conversation{}, drift_errors.ErrValidation
	}

	conv := domain.Conversation{
		ID:          uuid.New(),
		IsGroup:     true,
		GroupName:   name,
		GroupAdmin:  uuid.NullUUID{UUID: adminID, Valid: true},
		GroupAvatar: avatarURL,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.convRepo.CreateGroup(ctx, &conv, participants); err != nil {
		return domain.Conversation{}, err
	}

	full, err := s.convRepo.GetByID(ctx, conv.ID)
	if err != nil {
		return domain.Conversation{}, err
	}
	s.announce(ctx, events.EventTypeConversationCreated, full)
	return full, nil
}

func (s *ConversationService) List(ctx context.Context, selfID uuid.UUID) ([]domain.Conversation, error) {
	return s.convRepo.ListForUser(ctx, selfID)
}

func (s *ConversationService) Get(ctx context.Context, selfID, conversationID uuid.UUID) (domain.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !conv.HasParticipant(selfID) {
		return domain.Conversation{}, drift_errors.ErrForbidden
	}
	return conv, nil
}

// DeleteGroup removes a group conversation and all of its messages. Only
// the group admin may do this; direct conversations cannot be deleted.
func (s *ConversationService) DeleteGroup(ctx context.Context, selfID, conversationID uuid.UUID) error {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return drift_errors.ErrValidation
	}
	if !conv.GroupAdmin.Valid || conv.GroupAdmin.UUID != selfID {
		return drift_errors.ErrForbidden
	}

	if err := s.convRepo.DeleteWithMessages(ctx, conversationID); err != nil {
		return err
	}
	s.announce(ctx, events.EventTypeConversationDeleted, conv)
	return nil
}

func (s *ConversationService) announce(ctx context.Context, eventType string, conv domain.Conversation) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, eventType, events.AggregateTypeConversation, conv.ID.String(), conv); err != nil && s.log != nil {
		s.log.Warnf("conversation %s: publish %s: %v", conv.ID, eventType, err)
	}
}
