package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"driftchat/internal/services"
	"driftchat/internal/transport/httpdto"
)

type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	notifs, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"notifications": notifs}))
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	notificationID := c.Param("id")
	if notificationID == "" {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid notification id", "INVALID_REQUEST"))
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), userID, notificationID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"read": true}))
}

func (h *NotificationHandler) Clear(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.service.Clear(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"cleared": true}))
}
