package domain

import (
	"time"

	"github.com/google/uuid"

	drift_errors "driftchat/pkg/errors"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVideo MessageType = "video"
	MessageTypeAudio MessageType = "audio"
)

// Message is immutable once created except for the seen flag, which flips
// false to true exactly once when first rendered by the recipient.
type Message struct {
	ID             uuid.UUID     `json:"id"`
	ConversationID uuid.UUID     `json:"conversationId"`
	SenderID       uuid.UUID     `json:"senderId"`
	ReceiverID     uuid.NullUUID `json:"receiverId,omitempty"`
	Type           MessageType   `json:"messageType"`
	Content        string        `json:"content,omitempty"`
	URL            string        `json:"url,omitempty"`
	ThumbnailURL   string        `json:"thumbnailUrl,omitempty"`
	IsSeen         bool          `json:"isSeen"`

	// MirrorDocID correlates this row with its copy in the live channel.
	// It is filled in after the mirror publish succeeds.
	MirrorDocID string `json:"mirrorDocId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// ValidatePayload checks that the payload matches the message type.
func (m Message) ValidatePayload() error {
	switch m.Type {
	case MessageTypeText:
		if m.Content == "" {
			return drift_errors.ErrValidation
		}
	case MessageTypeImage, MessageTypeVideo, MessageTypeAudio:
		if m.URL == "" {
			return drift_errors.ErrValidation
		}
	default:
		return drift_errors.ErrValidation
	}
	return nil
}
