package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"staffdesk/pkg/metrics"
)

const (
	userTokensPattern = "user_tokens:*"
	outstandingPrefix = "outstanding:"
	scanBatch         = 100
)

type redisTokenRepository struct {
	client *redis.Client
}

// NewRedisTokenRepository создает репозиторий обслуживания токенов.
// Ключи совпадают с теми, что пишет account-service.
func NewRedisTokenRepository(client *redis.Client) TokenRepository {
	return &redisTokenRepository{client: client}
}

// PruneOutstanding проходит по user_tokens:* через SCAN и чистит множества только после
// полного обхода: опустевшее множество Redis удаляет, а удаление ключей во время SCAN теряет ключи.
// Ключ outstanding:{jti} живёт ровно до истечения токена, поэтому его отсутствие
// означает, что jti в множестве пользователя больше не нужен.
func (r *redisTokenRepository) PruneOutstanding(ctx context.Context) (int64, error) {
	keys, err := r.userTokenSets(ctx)
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, key := range keys {
		n, err := r.pruneSet(ctx, key)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

// userTokenSets возвращает ключи user_tokens:* без повторов (SCAN может вернуть ключ дважды)
func (r *redisTokenRepository) userTokenSets(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		keys   []string
		seen   = make(map[string]struct{})
	)

	for {
		page, next, err := r.client.Scan(ctx, cursor, userTokensPattern, scanBatch).Result()
		if err != nil {
			metrics.RecordRedisError(serviceName, metrics.RedisOpScan)
			return nil, fmt.Errorf("failed to scan user token sets: %w", err)
		}

		for _, key := range page {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}

		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (r *redisTokenRepository) pruneSet(ctx context.Context, key string) (int64, error) {
	jtis, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if len(jtis) == 0 {
		return 0, nil
	}

	pipe := r.client.Pipeline()
	exists := make([]*redis.IntCmd, len(jtis))
	for i, jti := range jtis {
		exists[i] = pipe.Exists(ctx, outstandingPrefix+jti)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpExists)
		return 0, fmt.Errorf("failed to check outstanding tokens of %s: %w", key, err)
	}

	var stale []interface{}
	for i, cmd := range exists {
		if cmd.Val() == 0 {
			stale = append(stale, jtis[i])
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	// пустое множество Redis удаляет сам
	n, err := r.client.SRem(ctx, key, stale...).Result()
	if err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpSRem)
		return 0, fmt.Errorf("failed to prune %s: %w", key, err)
	}
	return n, nil
}
