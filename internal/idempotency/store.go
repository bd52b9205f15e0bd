package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "owner-relay:delivery:"

// Store persists processed webhook results for replay.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore returns a Redis-backed Store, or nil when client is nil or
// ttl is not positive so callers can treat replay as disabled.
func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &redisStore{client: client, ttl: ttl}
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Put keeps the first stored result; a concurrent duplicate does not overwrite it.
func (s *redisStore) Put(ctx context.Context, key string, value []byte) error {
	return s.client.SetNX(ctx, keyPrefix+key, value, s.ttl).Err()
}
