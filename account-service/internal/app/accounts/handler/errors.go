package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/account-service/internal/app/accounts/service"
	"staffdesk/pkg/logger"
)

// respondError переводит ошибку сервиса в HTTP ответ.
// fallback уходит клиенту только для неизвестных ошибок, сама ошибка пишется в лог.
func respondError(c *gin.Context, err error, fallback string) {
	var validationErr *service.ValidationError
	var conflictErr *service.ConflictError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{
			Error:   "Bad Request",
			Message: "Validation failed",
			Fields:  validationErr.Fields,
		})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, entity.ErrorResponse{
			Error:   "Conflict",
			Message: "Already exists",
			Fields:  conflictErr.Fields,
		})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, entity.ErrorResponse{Error: "Conflict", Message: err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, entity.ErrorResponse{Error: "Unauthorized", Message: "Invalid login or password"})
	case errors.Is(err, service.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, entity.ErrorResponse{Error: "Unauthorized", Message: "Authentication required"})
	case errors.Is(err, service.ErrProviderFailed):
		c.JSON(http.StatusUnauthorized, entity.ErrorResponse{Error: "Unauthorized", Message: "Google login failed"})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, entity.ErrorResponse{Error: "Forbidden", Message: "Insufficient permissions"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, entity.ErrorResponse{Error: "Not Found", Message: err.Error()})
	case errors.Is(err, service.ErrProviderDisabled):
		c.JSON(http.StatusNotFound, entity.ErrorResponse{Error: "Not Found", Message: "Google login is not enabled"})
	case errors.Is(err, service.ErrTokenInvalid):
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Bad Request", Message: "Invalid or expired token"})
	case errors.Is(err, service.ErrDecryptionFailed):
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Bad Request", Message: "No refresh token"})
	case errors.Is(err, service.ErrTransientDependency):
		logger.Warn().Err(err).Str("path", c.FullPath()).Msg("dependency unavailable")
		c.JSON(http.StatusServiceUnavailable, entity.ErrorResponse{Error: "Service Unavailable", Message: "Try again later"})
	default:
		logger.Error().Err(err).Str("path", c.FullPath()).Msg(fallback)
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: "Internal Server Error", Message: fallback})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Bad Request", Message: message})
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, entity.ErrorResponse{Error: "Unauthorized", Message: message})
}
