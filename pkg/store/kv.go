// Package store persists widget state across page loads: the session
// identity record and in-progress drafts. Storage is pluggable behind a
// small KV interface with memory and Redis drivers.
package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leadergroupsaudi/chatkit-go/pkg/core"
)

// KV is the minimal key-value surface the stores need. Get reports a miss
// with found=false, not an error.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Type selects a KV driver.
type Type string

const (
	TypeMemory Type = "memory"
	TypeRedis  Type = "redis"
)

// Option configures a KV driver.
type Option func(*config)

type config struct {
	redisClient *redis.Client
	redisTTL    time.Duration
}

// WithRedisClient sets the Redis client for the redis driver.
func WithRedisClient(client *redis.Client) Option {
	return func(c *config) {
		c.redisClient = client
	}
}

// WithRedisTTL overrides the expiry applied to redis keys.
func WithRedisTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.redisTTL = ttl
	}
}

// NewKV builds a KV of the given type. The redis driver requires
// WithRedisClient.
func NewKV(t Type, opts ...Option) (KV, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch t {
	case TypeMemory:
		return newMemoryKV(), nil
	case TypeRedis:
		if cfg.redisClient == nil {
			return nil, core.NewInvalidRequestError("redis store requires a client")
		}
		ttl := cfg.redisTTL
		if ttl <= 0 {
			ttl = SessionWindow
		}
		return &redisKV{client: cfg.redisClient, ttl: ttl}, nil
	default:
		return nil, core.NewInvalidRequestError("unknown store type " + string(t))
	}
}
