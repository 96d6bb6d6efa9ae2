package httpdto

type TypingRequest struct {
	RecipientID string `json:"recipientId" binding:"required"`
}
