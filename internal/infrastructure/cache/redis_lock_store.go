package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appsettlement "github.com/settleflow/backend/internal/application/settlement"
	"github.com/settleflow/backend/internal/infrastructure/config"
)

// RedisLockStore implements IdempotencyStore using Redis. It is suitable
// for distributed deployments where multiple instances must agree on who
// holds an operation lock.
type RedisLockStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisLockStore creates a new Redis-backed lock store
func NewRedisLockStore(cfg *config.RedisConfig) (*RedisLockStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLockStore{
		client:    client,
		keyPrefix: "lock:",
	}, nil
}

// NewRedisLockStoreWithClient creates a store with an existing Redis client
func NewRedisLockStoreWithClient(client *redis.Client, keyPrefix string) *RedisLockStore {
	if keyPrefix == "" {
		keyPrefix = "lock:"
	}
	return &RedisLockStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Acquire attempts to take the lock for key. Returns true if the lock was
// newly taken, false if another holder still owns it. SETNX with TTL makes
// the check-and-set atomic.
func (s *RedisLockStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return acquired, nil
}

// Release drops the lock for key
func (s *RedisLockStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisLockStore) Close() error {
	return s.client.Close()
}

// Ensure RedisLockStore implements IdempotencyStore
var _ appsettlement.IdempotencyStore = (*RedisLockStore)(nil)
