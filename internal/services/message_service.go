package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"driftchat/internal/domain"
	"driftchat/internal/events"
	"driftchat/internal/repository"
	drift_errors "driftchat/pkg/errors"
)

type MessageService struct {
	msgRepo  repository.MessageRepository
	convRepo repository.ConversationRepository
}

func NewMessageService(msgRepo repository.MessageRepository, convRepo repository.ConversationRepository) *MessageService {
	return &MessageService{msgRepo: msgRepo, convRepo: convRepo}
}

type SendMessageInput struct {
	Type         domain.MessageType
	Content      string
	URL          string
	ThumbnailURL string
}

// SendMessage persists the message and, in the same transaction, enqueues
// the live-channel fan-out: one mirror event plus one notification per
// participant other than the sender. The caller gets the durable message
// back immediately; the mirror catches up asynchronously.
func (s *MessageService) SendMessage(ctx context.Context, senderID, conversationID uuid.UUID, in SendMessageInput) (domain.Message, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return domain.Message{}, err
	}
	if !conv.HasParticipant(senderID) {
		return domain.Message{}, drift_errors.ErrForbidden
	}

	msg := domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           in.Type,
		Content:        in.Content,
		URL:            in.URL,
		ThumbnailURL:   in.ThumbnailURL,
		CreatedAt:      time.Now().UTC(),
	}
	if err := msg.ValidatePayload(); err != nil {
		return domain.Message{}, err
	}

	var senderName string
	others := make([]domain.Profile, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		if p.ID == senderID {
			senderName = p.Username
			continue
		}
		others = append(others, p)
	}
	if !conv.IsGroup && len(others) == 1 {
		msg.ReceiverID = uuid.NullUUID{UUID: others[0].ID, Valid: true}
	}

	intents, err := s.fanOutIntents(msg, senderName, others)
	if err != nil {
		return domain.Message{}, err
	}
	if err := s.msgRepo.CreateWithOutbox(ctx, &msg, intents); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (s *MessageService) ListMessages(ctx context.Context, selfID, conversationID uuid.UUID) ([]domain.Message, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(selfID) {
		return nil, drift_errors.ErrForbidden
	}
	return s.msgRepo.ListByConversation(ctx, conversationID)
}

// MarkSeen flips a message's seen flag on behalf of a recipient. Calling it
// again, or racing another device, is a harmless no-op.
func (s *MessageService) MarkSeen(ctx context.Context, selfID, messageID uuid.UUID) (bool, error) {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return false, err
	}
	if msg.SenderID == selfID {
		return false, drift_errors.ErrForbidden
	}
	ok, err := s.convRepo.IsParticipant(ctx, msg.ConversationID, selfID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, drift_errors.ErrForbidden
	}

	doc := events.MessageDoc{
		MirrorID:       msg.MirrorDocID,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		MessageType:    string(msg.Type),
		IsSeen:         true,
		CreatedAt:      msg.CreatedAt,
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	intent := domain.OutboxEvent{
		ID:            uuid.New(),
		EventType:     events.EventTypeMessageUpdated,
		AggregateType: events.AggregateTypeMessage,
		AggregateID:   msg.ConversationID.String(),
		Payload:       payload,
	}
	return s.msgRepo.MarkSeen(ctx, messageID, intent)
}

func (s *MessageService) fanOutIntents(msg domain.Message, senderName string, others []domain.Profile) ([]domain.OutboxEvent, error) {
	doc := events.MessageDoc{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderName:     senderName,
		MessageType:    string(msg.Type),
		Content:        msg.Content,
		URL:            msg.URL,
		ThumbnailURL:   msg.ThumbnailURL,
		CreatedAt:      msg.CreatedAt,
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	intents := []domain.OutboxEvent{{
		ID:            uuid.New(),
		EventType:     events.EventTypeMessageCreated,
		AggregateType: events.AggregateTypeMessage,
		AggregateID:   msg.ConversationID.String(),
		Payload:       payload,
	}}

	for _, p := range others {
		notif := domain.Notification{
			ReceiverID:     p.ID,
			SenderID:       msg.SenderID,
			SenderName:     senderName,
			Type:           domain.NotificationNewMessage,
			Preview:        preview(msg),
			ConversationID: msg.ConversationID,
			CreatedAt:      msg.CreatedAt,
		}
		notifPayload, err := json.Marshal(notif)
		if err != nil {
			return nil, err
		}
		intents = append(intents, domain.OutboxEvent{
			ID:            uuid.New(),
			EventType:     events.EventTypeNotificationCreated,
			AggregateType: events.AggregateTypeNotification,
			AggregateID:   p.ID.String(),
			Payload:       notifPayload,
		})
	}
	return intents, nil
}

func preview(msg domain.Message) string {
	if msg.Type == domain.MessageTypeText {
		const max = 120
		if len(msg.Content) > max {
			return msg.Content[:max]
		}
		return msg.Content
	}
	return "[" + string(msg.Type) + "]"
}
