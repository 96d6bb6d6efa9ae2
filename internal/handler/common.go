package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"driftchat/internal/services"
	"driftchat/internal/transport/httpdto"
	drift_errors "driftchat/pkg/errors"
)

func parseUUID(raw string) (uuid.UUID, error) {
	return uuid.Parse(raw)
}

// currentUser pulls the authenticated user out of the request context and
// answers 401 itself when missing.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
	}
	return userID, ok
}

// respondError maps domain errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, drift_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("not found", "NOT_FOUND"))
	case errors.Is(err, drift_errors.ErrForbidden):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("forbidden", "FORBIDDEN"))
	case errors.Is(err, drift_errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
	case errors.Is(err, drift_errors.ErrAuthExpired):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("token expired", "TOKEN_EXPIRED"))
	case errors.Is(err, drift_errors.ErrValidation), errors.Is(err, drift_errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_REQUEST"))
	case errors.Is(err, drift_errors.ErrAlreadyExists), errors.Is(err, drift_errors.ErrConflict):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse(err.Error(), "CONFLICT"))
	case errors.Is(err, drift_errors.ErrInvalidTransition):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse("invalid state transition", "INVALID_TRANSITION"))
	case errors.Is(err, drift_errors.ErrUpstreamUnavailable):
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("upstream unavailable", "UPSTREAM_UNAVAILABLE"))
	default:
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", "INTERNAL_ERROR"))
	}
}
