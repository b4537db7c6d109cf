package server

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisLoginStore counts login attempts in fixed windows shared by every
// instance pointed at the same Redis.
type redisLoginStore struct {
	client  redis.UniversalClient
	timeout time.Duration
}

func newRedisLoginStore(client redis.UniversalClient, timeout time.Duration) *redisLoginStore {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &redisLoginStore{client: client, timeout: timeout}
}

func (s *redisLoginStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		if window < time.Millisecond {
			window = time.Second
		}
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return false, 0, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	if count <= int64(limit) {
		return true, 0, nil
	}
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ttl %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = window
	}
	return false, ttl, nil
}

func (s *redisLoginStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

func (s *redisLoginStore) Close() error {
	return s.client.Close()
}
