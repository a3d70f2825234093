package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkarras/go-entity-store/internal/config"
)

// scanBatch bounds how many keys a single SCAN iteration may return
// during pattern deletes.
const scanBatch = 256

// NewRedisClient creates a go-redis client from configuration.
// Returns nil if the address is empty (Redis not configured).
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		PoolSize:    cfg.PoolSize,
	})

	// Test connection before handing the client out.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// RedisStore is the production Store backend shared by all instances of
// the service.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an already-connected client. The client lifecycle
// is owned by the store from this point: Close closes it.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0 // redis: 0 means no expiry
	}
	return s.client.Set(ctx, key, val, ttl).Err()
}

// Del implements Store.
func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// DelPattern implements Store with a cursor SCAN so large keyspaces are
// walked in bounded batches instead of a blocking KEYS call.
func (s *RedisStore) DelPattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			deleted += int(n)
			if err != nil {
				return deleted, err
			}
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
