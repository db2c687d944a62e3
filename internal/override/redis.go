package override

import (
	"context"
	"errors"
	"time"

	apperrors "order-sync/pkg/errors"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisCache - реализация кеша переопределений на Redis: срок жизни ключа
// отдан самому Redis. Используется, когда несколько сессий бэкофиса должны
// видеть одни и те же маски.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisCache(client *redis.Client, logger *zap.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

// Set устанавливает значение с ttl. Бесконечный ttl запрещён.
func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return apperrors.NewInvalidInputError("переопределение обязано иметь конечный ttl, получено %s", ttl)
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Get получает значение из кеша по ключу.
func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("ошибка чтения переопределения из Redis",
				zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return value, true
}

// Clear удаляет ключ из кеша.
func (r *RedisCache) Clear(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
