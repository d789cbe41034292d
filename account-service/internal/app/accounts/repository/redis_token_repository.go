package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type redisTokenRepository struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisTokenRepository создает Redis репозиторий выданных и отозванных refresh токенов
func NewRedisTokenRepository(client *redis.Client) TokenRepository {
	return &redisTokenRepository{client: client, now: time.Now}
}

func outstandingKey(jti string) string {
	return "outstanding:" + jti
}

func userTokensKey(userID uuid.UUID) string {
	return "user_tokens:" + userID.String()
}

func blacklistKey(jti string) string {
	return "blacklist:" + jti
}

// SaveOutstanding запоминает выданный refresh токен пользователя до его истечения
func (r *redisTokenRepository) SaveOutstanding(ctx context.Context, userID uuid.UUID, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("token already expired")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, outstandingKey(jti), strconv.FormatInt(expiresAt.Unix(), 10), ttl)
	pipe.SAdd(ctx, userTokensKey(userID), jti)
	// множество живёт не меньше самого свежего токена
	pipe.Expire(ctx, userTokensKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save outstanding token: %w", err)
	}
	return nil
}

// ListOutstanding возвращает неистёкшие refresh токены пользователя
func (r *redisTokenRepository) ListOutstanding(ctx context.Context, userID uuid.UUID) ([]OutstandingToken, error) {
	jtis, err := r.client.SMembers(ctx, userTokensKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user tokens: %w", err)
	}
	if len(jtis) == 0 {
		return nil, nil
	}

	keys := make([]string, len(jtis))
	for i, jti := range jtis {
		keys[i] = outstandingKey(jti)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get outstanding tokens: %w", err)
	}

	tokens := make([]OutstandingToken, 0, len(jtis))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // истёк, ключ удалён Redis
		}
		unix, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		tokens = append(tokens, OutstandingToken{JTI: jtis[i], ExpiresAt: time.Unix(unix, 0)})
	}
	return tokens, nil
}

// AddToBlacklist атомарно добавляет jti в чёрный список до истечения токена.
// Возвращает false, если jti уже был отозван: так конкурентная ротация одного токена проходит только один раз.
func (r *redisTokenRepository) AddToBlacklist(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		// истёкший токен и так не пройдёт проверку подписи
		return true, nil
	}

	added, err := r.client.SetNX(ctx, blacklistKey(jti), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to add token to blacklist: %w", err)
	}
	return added, nil
}

// IsBlacklisted проверяет, находится ли jti в чёрном списке
func (r *redisTokenRepository) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	exists, err := r.client.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if token is blacklisted: %w", err)
	}
	return exists > 0, nil
}
