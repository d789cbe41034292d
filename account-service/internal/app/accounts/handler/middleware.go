package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/account-service/internal/app/accounts/repository"
	"staffdesk/account-service/internal/app/accounts/service"
	"staffdesk/pkg/logger"
)

const (
	principalKey    = "principal"
	refreshTokenKey = "refresh_token"
	sessionUserKey  = "session_user_id"
)

type AuthMiddleware struct {
	sessions *service.SessionService
	users    service.UserLookup
}

func NewAuthMiddleware(sessions *service.SessionService, users service.UserLookup) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
		users:    users,
	}
}

// Authenticate берёт access токен из cookie пользователя, выбранного заголовком X-Active-User
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := activeUser(c)
		if !ok {
			unauthorized(c, "X-Active-User header required")
			return
		}

		token, err := c.Cookie(accessCookieName(userID.String()))
		if err != nil || token == "" {
			unauthorized(c, "Authentication required")
			return
		}

		claims, err := m.sessions.ValidateAccess(token)
		if err != nil {
			unauthorized(c, "Invalid token")
			return
		}
		if claims.UserID != userID {
			logger.Warn().
				Str("header_user_id", userID.String()).
				Str("token_user_id", claims.UserID.String()).
				Msg("access token does not belong to active user")
			unauthorized(c, "Invalid token")
			return
		}

		user, err := m.users.GetByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				unauthorized(c, "Invalid token")
				return
			}
			respondError(c, errors.Join(service.ErrTransientDependency, err), "Failed to load user")
			c.Abort()
			return
		}
		if user.IsDeactivated() {
			unauthorized(c, "Account is deactivated")
			return
		}

		c.Set(principalKey, user)
		c.Set("user_id", user.ID)
		c.Next()
	}
}

// RequireSession расшифровывает refresh cookie активного пользователя.
// Любая ошибка расшифровки означает, что сессии нет.
func (m *AuthMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := activeUser(c)
		if !ok {
			noRefreshToken(c)
			return
		}

		envelope, err := c.Cookie(refreshCookieName(userID.String()))
		if err != nil || envelope == "" {
			noRefreshToken(c)
			return
		}

		signed, err := m.sessions.Decrypt(envelope)
		if err != nil {
			logger.Warn().Str("user_id", userID.String()).Msg("refresh cookie cannot be decrypted")
			noRefreshToken(c)
			return
		}

		c.Set(sessionUserKey, userID)
		c.Set(refreshTokenKey, signed)
		c.Next()
	}
}

// RequireSuperuser пропускает только суперпользователей. Ставится после Authenticate.
func (m *AuthMiddleware) RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := principal(c)
		if user == nil {
			unauthorized(c, "Authentication required")
			return
		}
		if !user.IsSuperuser {
			c.AbortWithStatusJSON(http.StatusForbidden, entity.ErrorResponse{
				Error:   "Forbidden",
				Message: "Superuser required",
			})
			return
		}
		c.Next()
	}
}

func noRefreshToken(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, entity.ErrorResponse{
		Error:   "Bad Request",
		Message: "No refresh token",
	})
}

func principal(c *gin.Context) *entity.User {
	value, exists := c.Get(principalKey)
	if !exists {
		return nil
	}
	user, _ := value.(*entity.User)
	return user
}

func sessionUser(c *gin.Context) (uuid.UUID, string) {
	return c.MustGet(sessionUserKey).(uuid.UUID), c.GetString(refreshTokenKey)
}
