package sessioncache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dashbff:session:"

// Redis shares the cache between BFF replicas; expiry is left to Redis.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (r *Redis) Contains(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Exists(ctx, keyPrefix+digest(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("session cache exists: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) Add(ctx context.Context, sessionID string) error {
	if r.ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, keyPrefix+digest(sessionID), "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("session cache set: %w", err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, keyPrefix+digest(sessionID)).Err(); err != nil {
		return fmt.Errorf("session cache del: %w", err)
	}
	return nil
}
