package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/pkg/logger"
	"github.com/prohmpiriya/tourism-booking/pkg/response"
	"github.com/prohmpiriya/tourism-booking/pkg/telemetry"
	"go.uber.org/zap"
)

// handleError maps domain errors to HTTP responses
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrTokenInvalid):
		response.Error(c, http.StatusBadRequest, "INVALID_PUSH_TOKEN", err.Error(), "")
	case errors.Is(err, domain.ErrInvalidQuantity):
		response.Error(c, http.StatusBadRequest, "INVALID_QUANTITY", err.Error(), "")
	case domain.IsValidationError(err):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), "")

	case errors.Is(err, domain.ErrResourceNotFound):
		response.Error(c, http.StatusNotFound, "RESOURCE_NOT_FOUND", err.Error(), "")
	case errors.Is(err, domain.ErrUnknownProvider):
		response.Error(c, http.StatusNotFound, "UNKNOWN_PROVIDER", err.Error(), "")
	case domain.IsNotFoundError(err):
		response.NotFound(c, err.Error())

	case errors.Is(err, domain.ErrCapacityExceeded):
		response.Conflict(c, "CAPACITY_EXCEEDED", err.Error())
	case errors.Is(err, domain.ErrPaymentAlreadyInProgress):
		response.Conflict(c, "PAYMENT_IN_PROGRESS", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		response.Conflict(c, "INVALID_TRANSITION", err.Error())

	case errors.Is(err, domain.ErrInvalidSignature):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable):
		c.Header("Retry-After", "5")
		response.Error(c, http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE",
			"Payment provider is unavailable, please retry", err.Error())

	default:
		logger.Get().ErrorContext(c.Request.Context(), "unhandled request error",
			zap.String("path", c.FullPath()),
			zap.String("trace_id", telemetry.GetTraceID(c.Request.Context())),
			zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal Server Error", "")
	}
}

// requireUserID reads the caller identity set by middleware.UserID
func requireUserID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return "", false
	}
	return userID, true
}
