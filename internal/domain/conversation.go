package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a direct (two participant) or group chat. Messages reference
// the conversation by foreign key; there is no message-id array to append to,
// so concurrent sends cannot lose messages.
type Conversation struct {
	ID          uuid.UUID     `json:"id"`
	IsGroup     bool          `json:"isGroup"`
	GroupName   string        `json:"groupName,omitempty"`
	GroupAdmin  uuid.NullUUID `json:"groupAdmin,omitempty"`
	GroupAvatar string        `json:"groupAvatar,omitempty"`

	Participants []Profile `json:"participants,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}
