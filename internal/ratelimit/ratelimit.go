// Package ratelimit drops update floods from a single user.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a user may be served now
type Limiter interface {
	Allow(ctx context.Context, userID int64) (bool, error)
}

// Noop allows everything
type Noop struct{}

func (Noop) Allow(context.Context, int64) (bool, error) { return true, nil }

// Redis counts events per user in fixed windows shared by every bot process
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedis connects to addr and checks the connection
func NewRedis(ctx context.Context, addr, password string, db, limit int, window time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{client: client, limit: limit, window: window, prefix: "ratelimit"}, nil
}

// Allow increments the user's counter for the current window
func (r *Redis) Allow(ctx context.Context, userID int64) (bool, error) {
	key := fmt.Sprintf("%s:%d", r.prefix, userID)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return true, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if count == 1 {
		r.client.Expire(ctx, key, r.window)
	}
	return count <= int64(r.limit), nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
