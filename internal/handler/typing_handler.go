package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"driftchat/internal/services"
	"driftchat/internal/transport/httpdto"
)

type TypingHandler struct {
	service *services.PresenceService
}

func NewTypingHandler(service *services.PresenceService) *TypingHandler {
	return &TypingHandler{service: service}
}

func (h *TypingHandler) Start(c *gin.Context) {
	h.set(c, true)
}

func (h *TypingHandler) Stop(c *gin.Context) {
	h.set(c, false)
}

func (h *TypingHandler) set(c *gin.Context, typing bool) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req httpdto.TypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	recipientID, err := parseUUID(req.RecipientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid recipientId", "INVALID_REQUEST"))
		return
	}

	if typing {
		err = h.service.StartTyping(c.Request.Context(), userID, recipientID)
	} else {
		err = h.service.StopTyping(c.Request.Context(), userID, recipientID)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"typing": typing}))
}
