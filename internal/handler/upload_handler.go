package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"driftchat/internal/services"
	"driftchat/internal/transport/httpdto"
)

type UploadHandler struct {
	service *services.UploadService
}

func NewUploadHandler(service *services.UploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

// Presign hands the client a short-lived direct-to-bucket upload URL.
func (h *UploadHandler) Presign(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req httpdto.PresignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	ticket, err := h.service.PresignUpload(c.Request.Context(), userID, req.Filename, req.ContentType, req.SizeBytes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(ticket))
}
