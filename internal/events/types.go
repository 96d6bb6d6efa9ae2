package events

import (
	"time"

	"github.com/google/uuid"
)

// Event type constants, format: domain.action

// Message events
const (
	EventTypeMessageCreated = "message.created"
	EventTypeMessageUpdated = "message.updated"
)

// Notification events
const (
	EventTypeNotificationCreated = "notification.created"
)

// Call mailbox events. Every call event carries the mailbox sequence so a
// stale caller can tell "replaced by a newer call" apart from "answered".
const (
	EventTypeCallRinging  = "call.ringing"
	EventTypeCallAccepted = "call.accepted"
	EventTypeCallCleared  = "call.cleared"
)

// Typing and presence events
const (
	EventTypeTypingStarted   = "typing.started"
	EventTypeTypingStopped   = "typing.stopped"
	EventTypePresenceOnline  = "presence.online"
	EventTypePresenceOffline = "presence.offline"
)

// Conversation events
const (
	EventTypeConversationCreated = "conversation.created"
	EventTypeConversationDeleted = "conversation.deleted"
)

// Aggregate type constants
const (
	AggregateTypeMessage      = "message"
	AggregateTypeNotification = "notification"
	AggregateTypeCall         = "call"
	AggregateTypeTyping       = "typing"
	AggregateTypePresence     = "presence"
	AggregateTypeConversation = "conversation"
)

// MessageDoc is the denormalized live-channel copy of a durable message.
type MessageDoc struct {
	MirrorID       string    `json:"mirrorId"`
	MessageID      uuid.UUID `json:"messageId"`
	ConversationID uuid.UUID `json:"conversationId"`
	SenderID       uuid.UUID `json:"senderId"`
	SenderName     string    `json:"senderName"`
	MessageType    string    `json:"messageType"`
	Content        string    `json:"content,omitempty"`
	URL            string    `json:"url,omitempty"`
	ThumbnailURL   string    `json:"thumbnailUrl,omitempty"`
	IsSeen         bool      `json:"isSeen"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CallBoxDoc is the payload of call mailbox events.
type CallBoxDoc struct {
	Seq        int64     `json:"seq"`
	CallerID   uuid.UUID `json:"callerId"`
	CallerName string    `json:"callerName"`
	ReceiverID uuid.UUID `json:"receiverId"`
	CallType   string    `json:"callType"`
	Status     string    `json:"status"`
	RoomName   string    `json:"roomName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TypingDoc is the payload of typing events; the recipient decides whether
// to surface it based on the currently open conversation partner.
type TypingDoc struct {
	SenderID    uuid.UUID `json:"senderId"`
	RecipientID uuid.UUID `json:"recipientId"`
	IsTyping    bool      `json:"isTyping"`
}

// PresenceDoc is the payload of presence events.
type PresenceDoc struct {
	UserID      uuid.UUID `json:"userId"`
	IsOnline    bool      `json:"isOnline"`
	LastChanged time.Time `json:"lastChanged"`
}
