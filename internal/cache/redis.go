package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/prn-tf/alexander-azblob/internal/config"
	"github.com/prn-tf/alexander-azblob/internal/domain"
)

// RedisStore implements Store on Redis so several processes share one memo.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore connects lazily to the server described by cfg.
func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	return NewRedisStoreWithClient(redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	}))
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Get retrieves a level by key.
func (s *RedisStore) Get(ctx context.Context, key string) (domain.AccessLevel, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}

	level, err := domain.ParseAccessLevel(value)
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return level, nil
}

// Set stores a level without expiry.
func (s *RedisStore) Set(ctx context.Context, key string, level domain.AccessLevel) error {
	if err := s.client.Set(ctx, key, string(level), 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes a level by key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
