package marker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of *redis.Client used here.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Close() error
}

// Redis keeps markers in Redis so several daemon replicas share them.
type Redis struct {
	client RedisClient
	prefix string
}

// DialRedis parses a redis:// URL, connects and pings.
func DialRedis(ctx context.Context, url, prefix string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	c := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedis(c, prefix), nil
}

// NewRedis wraps an existing client.
func NewRedis(c RedisClient, prefix string) *Redis {
	return &Redis{client: c, prefix: prefix}
}

// MarkOnce issues SET NX with the given TTL.
func (r *Redis) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("marker %s: %w", key, err)
	}
	return ok, nil
}

// Close closes the client.
func (r *Redis) Close() error { return r.client.Close() }

var _ Store = (*Redis)(nil)
