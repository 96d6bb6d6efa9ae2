package websocket

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"driftchat/internal/events"
	"driftchat/internal/repository"
	"driftchat/internal/services"
	drift_errors "driftchat/pkg/errors"
)

// ChannelAuthorizer decides which live channels a connection may join.
type ChannelAuthorizer struct {
	conversationRepo repository.ConversationRepository
	callbox          services.CallBox
}

func NewChannelAuthorizer(conversationRepo repository.ConversationRepository, callbox services.CallBox) *ChannelAuthorizer {
	return &ChannelAuthorizer{conversationRepo: conversationRepo, callbox: callbox}
}

func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID string, channel string) (bool, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return false, nil
	}

	// A user always owns their notification, typing and call mailboxes.
	if channel == events.ChannelPrefixUser+userID ||
		channel == events.ChannelPrefixTyping+userID ||
		channel == events.ChannelPrefixCall+userID {
		return true, nil
	}

	// Presence is contact-list data; any authenticated user may watch it.
	if strings.HasPrefix(channel, events.ChannelPrefixPresence) {
		return true, nil
	}

	// Conversation channels require membership.
	if strings.HasPrefix(channel, events.ChannelPrefixConversation) {
		convID, err := uuid.Parse(strings.TrimPrefix(channel, events.ChannelPrefixConversation))
		if err != nil {
			return false, nil
		}
		return a.conversationRepo.IsParticipant(ctx, convID, userUUID)
	}

	// Another user's call channel is visible only to the caller currently
	// occupying that mailbox, so an outbound caller can watch for the
	// answer or the hangup.
	if strings.HasPrefix(channel, events.ChannelPrefixCall) {
		receiverID, err := uuid.Parse(strings.TrimPrefix(channel, events.ChannelPrefixCall))
		if err != nil {
			return false, nil
		}
		session, err := a.callbox.Get(ctx, receiverID)
		if errors.Is(err, drift_errors.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return session.CallerID == userUUID, nil
	}

	return false, nil
}
