package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"driftchat/internal/services"
	"driftchat/internal/transport/httpdto"
	drift_errors "driftchat/pkg/errors"
)

type AuthHandler struct {
	service  *services.AuthService
	presence *services.PresenceService
}

func NewAuthHandler(service *services.AuthService, presence *services.PresenceService) *AuthHandler {
	return &AuthHandler{service: service, presence: presence}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req httpdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	resp, err := h.service.Register(c.Request.Context(), services.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(resp))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req httpdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	resp, err := h.service.Login(c.Request.Context(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req httpdto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	resp, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}

// Logout is best-effort cleanup: tokens are stateless, so the only server
// side of signing out is dropping the presence entry.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if h.presence != nil {
		if err := h.presence.Disconnected(c.Request.Context(), userID); err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"loggedOut": true}))
}

// ForgotPassword always answers 200 so the endpoint cannot be used to probe
// which emails have accounts.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req httpdto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	if _, err := h.service.ForgotPassword(c.Request.Context(), req.Email); err != nil && !errors.Is(err, drift_errors.ErrNotFound) {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"sent": true}))
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req httpdto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"reset": true}))
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req httpdto.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	if err := h.service.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"verified": true}))
}
