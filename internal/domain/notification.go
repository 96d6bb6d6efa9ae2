package domain

import (
	"time"

	"github.com/google/uuid"
)

const NotificationNewMessage = "NEW_MESSAGE"

// Notification lives only in the live channel; it is created by the mirror
// alongside each message fan-out, once per participant except the sender.
type Notification struct {
	ID             string    `json:"id"`
	ReceiverID     uuid.UUID `json:"receiverId"`
	SenderID       uuid.UUID `json:"senderId"`
	SenderName     string    `json:"senderName"`
	Type           string    `json:"type"`
	Preview        string    `json:"messageContent,omitempty"`
	ConversationID uuid.UUID `json:"conversationId"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
}
