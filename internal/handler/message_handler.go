package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"driftchat/internal/domain"
	"driftchat/internal/services"
	"driftchat/internal/transport/httpdto"
)

type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	conversationID, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), userID, conversationID, services.SendMessageInput{
		Type:         domain.MessageType(req.MessageType),
		Content:      req.Content,
		URL:          req.URL,
		ThumbnailURL: req.ThumbnailURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(msg))
}

func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	conversationID, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	msgs, err := h.service.ListMessages(c.Request.Context(), userID, conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"messages": msgs}))
}

func (h *MessageHandler) MarkSeen(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "INVALID_REQUEST"))
		return
	}

	flipped, err := h.service.MarkSeen(c.Request.Context(), userID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkSeenResponse{Flipped: flipped}))
}
