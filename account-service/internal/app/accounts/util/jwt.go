package util

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"staffdesk/account-service/internal/app/accounts/entity"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// SessionClaims - полезная нагрузка access и refresh токенов: {user_id, token_type, exp, iat, jti}
type SessionClaims struct {
	UserID    uuid.UUID        `json:"user_id"`
	TokenType entity.TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// JTI возвращает идентификатор токена
func (c *SessionClaims) JTI() string {
	return c.ID
}

// Expiry возвращает момент истечения токена
func (c *SessionClaims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// JWTManager выпускает и проверяет HS256 токены сессии
type JWTManager struct {
	secretKey            []byte
	accessTokenDuration  time.Duration
	refreshTokenDuration time.Duration
	now                  func() time.Time
}

func NewJWTManager(secretKey string, accessDuration, refreshDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:            []byte(secretKey),
		accessTokenDuration:  accessDuration,
		refreshTokenDuration: refreshDuration,
		now:                  time.Now,
	}
}

// WithClock подменяет источник времени (для тестов)
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	m.now = now
	return m
}

// GenerateAccessToken выпускает access токен с новым jti
func (m *JWTManager) GenerateAccessToken(userID uuid.UUID) (string, *SessionClaims, error) {
	return m.generate(userID, entity.TokenTypeAccess, m.accessTokenDuration)
}

// GenerateRefreshToken выпускает refresh токен с новым jti
func (m *JWTManager) GenerateRefreshToken(userID uuid.UUID) (string, *SessionClaims, error) {
	return m.generate(userID, entity.TokenTypeRefresh, m.refreshTokenDuration)
}

func (m *JWTManager) generate(userID uuid.UUID, tokenType entity.TokenType, ttl time.Duration) (string, *SessionClaims, error) {
	now := m.now()
	claims := &SessionClaims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, claims, nil
}

// ValidateToken проверяет подпись, срок действия и тип токена
func (m *JWTManager) ValidateToken(tokenString string, expected entity.TokenType) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&SessionClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != expected || claims.ID == "" || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
