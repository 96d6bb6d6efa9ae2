package httpdto

type SendMessageRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	MessageType    string `json:"messageType" binding:"required"`
	Content        string `json:"content"`
	URL            string `json:"url"`
	ThumbnailURL   string `json:"thumbnailUrl"`
}

type MarkSeenResponse struct {
	Flipped bool `json:"flipped"`
}
