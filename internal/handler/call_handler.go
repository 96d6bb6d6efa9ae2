package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"driftchat/internal/domain"
	"driftchat/internal/services"
	"driftchat/internal/transport/httpdto"
)

type CallHandler struct {
	service *services.CallService
}

func NewCallHandler(service *services.CallService) *CallHandler {
	return &CallHandler{service: service}
}

func (h *CallHandler) Start(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req httpdto.StartCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	receiverID, err := parseUUID(req.ReceiverID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid receiverId", "INVALID_REQUEST"))
		return
	}

	session, err := h.service.StartCall(c.Request.Context(), userID, receiverID, domain.CallType(req.CallType))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(session))
}

func (h *CallHandler) Accept(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	session, err := h.service.AcceptCall(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(session))
}

func (h *CallHandler) Decline(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	session, err := h.service.DeclineCall(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(session))
}

func (h *CallHandler) Hangup(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req httpdto.HangupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	receiverID, err := parseUUID(req.ReceiverID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid receiverId", "INVALID_REQUEST"))
		return
	}

	session, err := h.service.Hangup(c.Request.Context(), userID, receiverID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(session))
}

func (h *CallHandler) Log(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req httpdto.LogCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	initiatorID, err := parseUUID(req.InitiatorID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid initiatorId", "INVALID_REQUEST"))
		return
	}
	receiverID, err := parseUUID(req.ReceiverID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid receiverId", "INVALID_REQUEST"))
		return
	}

	rec, err := h.service.LogCall(c.Request.Context(), userID, services.LogCallInput{
		InitiatorID: initiatorID,
		ReceiverID:  receiverID,
		CallType:    domain.CallType(req.CallType),
		Outcome:     domain.CallOutcome(req.Status),
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(rec))
}

func (h *CallHandler) History(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	recs, err := h.service.History(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"calls": recs}))
}
