package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"staffdesk/account-service/internal/app/accounts/config"
	"staffdesk/account-service/internal/app/accounts/entity"
)

const (
	activeUserHeader    = "X-Active-User"
	accessCookiePrefix  = "access_token_"
	refreshCookiePrefix = "refresh_token_"
)

func accessCookieName(userID string) string  { return accessCookiePrefix + userID }
func refreshCookieName(userID string) string { return refreshCookiePrefix + userID }

// SessionCookies пишет и стирает cookie сессии.
// На один браузер может приходиться несколько пользователей, поэтому имя cookie содержит ID.
type SessionCookies struct {
	cfg config.CookieConfig
	now func() time.Time
}

func NewSessionCookies(cfg config.CookieConfig) *SessionCookies {
	return &SessionCookies{cfg: cfg, now: time.Now}
}

// Set кладёт access токен и JWE с refresh токеном. Подписанный refresh в cookie не попадает.
func (s *SessionCookies) Set(c *gin.Context, session *entity.Session) {
	uid := session.UserID.String()
	s.write(c, accessCookieName(uid), session.Tokens.AccessToken, session.Tokens.AccessExp)
	s.write(c, refreshCookieName(uid), session.Envelope, session.Tokens.RefreshExp)
}

// Clear стирает обе cookie пользователя
func (s *SessionCookies) Clear(c *gin.Context, userID uuid.UUID) {
	uid := userID.String()
	c.SetSameSite(s.cfg.SameSite)
	c.SetCookie(accessCookieName(uid), "", -1, "/", s.cfg.Domain, s.cfg.Secure, true)
	c.SetCookie(refreshCookieName(uid), "", -1, "/", s.cfg.Domain, s.cfg.Secure, true)
}

func (s *SessionCookies) write(c *gin.Context, name, value string, expires time.Time) {
	maxAge := int(expires.Sub(s.now()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	c.SetSameSite(s.cfg.SameSite)
	c.SetCookie(name, value, maxAge, "/", s.cfg.Domain, s.cfg.Secure, true)
}

// activeUser читает X-Active-User и проверяет, что это UUID
func activeUser(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetHeader(activeUserHeader)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
