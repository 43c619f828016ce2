// Package redisx wraps the Redis client used as the idempotency record store
// for payment submission.
package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idempotency key per payment submission: idem:payments:{scope}:{key}
const keyIdemPayments = "idem:payments:"

// TTLIdempotency bounds how long a replayed payment response is served.
var TTLIdempotency = 24 * time.Hour

// New creates a Redis client.
func New(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Store is the idempotency record store backed by Redis.
type Store struct {
	rdb *redis.Client
}

// NewStore wraps a Redis client.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Key builds the idempotency record key for one client-supplied key within a
// request scope.
func (s *Store) Key(scope, key string) string {
	return keyIdemPayments + scope + ":" + key
}

// Get returns the stored record for key, or "" when absent.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// SetNX stores the record unless one already exists.
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, value, ttl).Result()
}
