package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"driftchat/internal/services"
	"driftchat/internal/transport/httpdto"
)

type ConversationHandler struct {
	service *services.ConversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// OpenDirect finds or creates the direct conversation with another user.
func (h *ConversationHandler) OpenDirect(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req httpdto.OpenDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	otherID, err := parseUUID(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid userId", "INVALID_REQUEST"))
		return
	}

	conv, err := h.service.OpenDirect(c.Request.Context(), userID, otherID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}

func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req httpdto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	memberIDs := make([]uuid.UUID, 0, len(req.MemberIDs))
	for _, raw := range req.MemberIDs {
		id, err := parseUUID(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid member id", "INVALID_REQUEST"))
			return
		}
		memberIDs = append(memberIDs, id)
	}

	conv, err := h.service.CreateGroup(c.Request.Context(), userID, req.Name, req.AvatarURL, memberIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(conv))
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	convs, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"conversations": convs}))
}

func (h *ConversationHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	conversationID, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	conv, err := h.service.Get(c.Request.Context(), userID, conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}

func (h *ConversationHandler) DeleteGroup(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	conversationID, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	if err := h.service.DeleteGroup(c.Request.Context(), userID, conversationID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"deleted": true}))
}
