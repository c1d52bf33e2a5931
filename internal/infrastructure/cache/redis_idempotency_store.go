package cache

import (
	"cmp"
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wms/backend/internal/application/warehouse"
)

// guardKeyPrefix namespaces posting-guard keys so a shared Redis can
// serve other concerns without collisions.
const guardKeyPrefix = "wms:guard:"

// RedisIdempotencyStore implements the posting guard using Redis.
// This is suitable for distributed deployments where multiple instances
// post against the same jobs.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

var _ warehouse.IdempotencyStore = (*RedisIdempotencyStore)(nil)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisIdempotencyStore dials Redis and verifies the connection
// before handing the store out.
func NewRedisIdempotencyStore(cfg RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisIdempotencyStoreWithClient(client, guardKeyPrefix), nil
}

// NewRedisIdempotencyStoreWithClient wraps an existing Redis client,
// useful for tests or when sharing one client across components.
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: cmp.Or(keyPrefix, guardKeyPrefix),
	}
}

// Begin claims the key with a TTL.
// Uses SETNX so concurrent posters race atomically; returns false for the loser.
func (s *RedisIdempotencyStore) Begin(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim posting guard %q: %w", key, err)
	}
	return ok, nil
}

// Clear releases the key so the operation can retry
func (s *RedisIdempotencyStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release posting guard %q: %w", key, err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}
