package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/account-service/internal/app/accounts/repository"
	"staffdesk/account-service/internal/app/accounts/util"
	"staffdesk/pkg/logger"
	"staffdesk/pkg/metrics"
)

// UserLookup загружает пользователя по ID
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
}

// SessionService выпускает, шифрует, ротирует и отзывает токены сессии
type SessionService struct {
	jwt      *util.JWTManager
	envelope *util.Envelope
	tokens   repository.TokenRepository
	users    UserLookup
}

// NewSessionService создает менеджер сессий
func NewSessionService(
	jwtManager *util.JWTManager,
	envelope *util.Envelope,
	tokens repository.TokenRepository,
	users UserLookup,
) *SessionService {
	return &SessionService{
		jwt:      jwtManager,
		envelope: envelope,
		tokens:   tokens,
		users:    users,
	}
}

// Issue выпускает пару access + refresh и регистрирует refresh как выданный
func (s *SessionService) Issue(ctx context.Context, user *entity.User) (*entity.TokenPair, error) {
	refresh, refreshClaims, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	access, accessClaims, err := s.jwt.GenerateAccessToken(user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.SaveOutstanding(ctx, user.ID, refreshClaims.JTI(), refreshClaims.Expiry()); err != nil {
		return nil, transient("register refresh token", err)
	}

	metrics.AuthTokensIssued.WithLabelValues(string(entity.TokenTypeAccess)).Inc()
	metrics.AuthTokensIssued.WithLabelValues(string(entity.TokenTypeRefresh)).Inc()

	return &entity.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		RefreshJTI:   refreshClaims.JTI(),
		AccessExp:    accessClaims.Expiry(),
		RefreshExp:   refreshClaims.Expiry(),
	}, nil
}

// IssueSession выпускает пару токенов и сразу шифрует refresh для cookie
func (s *SessionService) IssueSession(ctx context.Context, user *entity.User) (*entity.Session, error) {
	pair, err := s.Issue(ctx, user)
	if err != nil {
		return nil, err
	}
	sealed, err := s.Encrypt(pair.RefreshToken)
	if err != nil {
		return nil, err
	}
	return &entity.Session{UserID: user.ID, Tokens: *pair, Envelope: sealed}, nil
}

// Encrypt упаковывает подписанный refresh токен в JWE
func (s *SessionService) Encrypt(signedRefresh string) (string, error) {
	sealed, err := s.envelope.Encrypt(signedRefresh)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	return sealed, nil
}

// Decrypt распаковывает JWE. Ошибка всегда ErrDecryptionFailed.
func (s *SessionService) Decrypt(envelope string) (string, error) {
	signed, err := s.envelope.Decrypt(envelope)
	if err != nil {
		metrics.AuthEnvelopeFailures.Inc()
		return "", ErrDecryptionFailed
	}
	return signed, nil
}

// ValidateAccess проверяет access токен
func (s *SessionService) ValidateAccess(access string) (*util.SessionClaims, error) {
	claims, err := s.jwt.ValidateToken(access, entity.TokenTypeAccess)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Refresh проверяет refresh токен владельца owner, отзывает его и выпускает новую пару.
// Отзыв выполняется атомарно: из двух одновременных ротаций одного токена успешна только одна.
func (s *SessionService) Refresh(ctx context.Context, owner uuid.UUID, signedRefresh string) (*entity.Session, error) {
	claims, err := s.jwt.ValidateToken(signedRefresh, entity.TokenTypeRefresh)
	if err != nil {
		metrics.AuthRefreshRotations.WithLabelValues("rejected").Inc()
		return nil, ErrTokenInvalid
	}
	if claims.UserID != owner {
		metrics.AuthRefreshRotations.WithLabelValues("rejected").Inc()
		logger.Warn().
			Str("user_id", owner.String()).
			Str("token_user_id", claims.UserID.String()).
			Msg("refresh token presented for another user")
		return nil, ErrTokenInvalid
	}

	blacklisted, err := s.tokens.IsBlacklisted(ctx, claims.JTI())
	if err != nil {
		return nil, transient("check blacklist", err)
	}
	if blacklisted {
		metrics.AuthRefreshRotations.WithLabelValues("rejected").Inc()
		logger.Warn().Str("user_id", claims.UserID.String()).Msg("blacklisted refresh token presented")
		return nil, ErrTokenInvalid
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, transient("load user", err)
	}
	if user.IsDeactivated() {
		return nil, ErrTokenInvalid
	}

	added, err := s.tokens.AddToBlacklist(ctx, claims.JTI(), claims.Expiry())
	if err != nil {
		return nil, transient("blacklist rotated token", err)
	}
	if !added {
		metrics.AuthRefreshRotations.WithLabelValues("rejected").Inc()
		return nil, ErrTokenInvalid
	}
	metrics.AuthTokensRevoked.WithLabelValues("rotation").Inc()

	session, err := s.IssueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	metrics.AuthRefreshRotations.WithLabelValues("success").Inc()
	return session, nil
}

// Blacklist отзывает refresh токен владельца owner до его истечения. Истёкший токен отзывать не нужно.
func (s *SessionService) Blacklist(ctx context.Context, owner uuid.UUID, signedRefresh string) error {
	claims, err := s.jwt.ValidateToken(signedRefresh, entity.TokenTypeRefresh)
	if err != nil {
		if errors.Is(err, util.ErrExpiredToken) {
			return nil
		}
		return ErrTokenInvalid
	}
	if claims.UserID != owner {
		logger.Warn().
			Str("user_id", owner.String()).
			Str("token_user_id", claims.UserID.String()).
			Msg("logout with refresh token of another user")
		return ErrTokenInvalid
	}

	if _, err := s.tokens.AddToBlacklist(ctx, claims.JTI(), claims.Expiry()); err != nil {
		return transient("blacklist token", err)
	}
	metrics.AuthTokensRevoked.WithLabelValues("logout").Inc()
	return nil
}

// RevokeAll отзывает все выданные refresh токены пользователя и возвращает их количество
func (s *SessionService) RevokeAll(ctx context.Context, userID uuid.UUID) (int, error) {
	outstanding, err := s.tokens.ListOutstanding(ctx, userID)
	if err != nil {
		return 0, transient("list outstanding tokens", err)
	}

	revoked := 0
	for _, tok := range outstanding {
		added, err := s.tokens.AddToBlacklist(ctx, tok.JTI, tok.ExpiresAt)
		if err != nil {
			return revoked, transient("blacklist token", err)
		}
		if added {
			revoked++
		}
	}
	metrics.AuthTokensRevoked.WithLabelValues("password_reset").Add(float64(revoked))
	return revoked, nil
}
