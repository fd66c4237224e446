package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leadergroupsaudi/chatkit-go/pkg/core"
)

type redisKV struct {
	client *redis.Client
	ttl    time.Duration
}

func (r *redisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, core.NewStorageError("redis get "+key, err)
	}
	// Reading a key keeps it alive for another window.
	_ = r.client.Expire(ctx, key, r.ttl).Err()
	return val, true, nil
}

func (r *redisKV) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return core.NewStorageError("redis set "+key, err)
	}
	return nil
}

func (r *redisKV) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return core.NewStorageError("redis del "+key, err)
	}
	return nil
}

func (r *redisKV) Close() error {
	return r.client.Close()
}
