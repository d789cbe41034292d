package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/pkg/metrics"
)

// DefaultRoleTTL - время жизни снимка роли в кеше
const DefaultRoleTTL = 600 * time.Second

const cacheService = "account-service"

type redisRoleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRoleCache создает кеш ролей в Redis
func NewRedisRoleCache(client *redis.Client, ttl time.Duration) RoleCache {
	if ttl <= 0 {
		ttl = DefaultRoleTTL
	}
	return &redisRoleCache{client: client, ttl: ttl}
}

// RoleCacheKey возвращает ключ снимка роли
func RoleCacheKey(id int) string {
	return fmt.Sprintf("role:%d", id)
}

// Get возвращает снимок роли или ErrCacheMiss
func (c *redisRoleCache) Get(ctx context.Context, id int) (*entity.RoleSnapshot, error) {
	defer metrics.NewRedisTimer(cacheService, metrics.RedisOpGet).ObserveDuration()

	data, err := c.client.Get(ctx, RoleCacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get role from cache: %w", err)
	}

	var snapshot entity.RoleSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		// битая запись равносильна промаху, её перезапишет следующая загрузка
		return nil, ErrCacheMiss
	}
	return &snapshot, nil
}

// Set сохраняет снимок роли с TTL
func (c *redisRoleCache) Set(ctx context.Context, snapshot entity.RoleSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal role: %w", err)
	}

	defer metrics.NewRedisTimer(cacheService, metrics.RedisOpSet).ObserveDuration()
	if err := c.client.Set(ctx, RoleCacheKey(snapshot.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set role in cache: %w", err)
	}
	return nil
}

// Delete удаляет снимок роли
func (c *redisRoleCache) Delete(ctx context.Context, id int) error {
	defer metrics.NewRedisTimer(cacheService, metrics.RedisOpDel).ObserveDuration()

	if err := c.client.Del(ctx, RoleCacheKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete role from cache: %w", err)
	}
	return nil
}
