package idempotency

import (
	"context"
	"time"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/cache"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/errors"
)

// Lock entries guard a request in flight and expire fast. Data entries
// hold the finished response long enough to cover client retries of an
// expense submission.
const (
	keyPrefix = "idem:"
	lockTTL   = 10 * time.Second
	dataTTL   = 24 * 7 * time.Hour
)

func lockKey(key string) string { return keyPrefix + key + ":lock" }
func dataKey(key string) string { return keyPrefix + key + ":data" }

// Store keeps idempotency state in Redis so every API replica sees the
// same locks.
type Store struct {
	cache *cache.RedisClient
}

func NewStore(c *cache.RedisClient) *Store {
	return &Store{cache: c}
}

// Lock reports whether the caller is first in. A key whose response
// already exists reports false, which routes the middleware to the
// replay path.
func (s *Store) Lock(ctx context.Context, key string) (bool, error) {
	_, found, err := s.GetResponse(ctx, key)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}

	return cache.SetNX(s.cache, ctx, lockKey(key), "1", lockTTL)
}

func (s *Store) GetResponse(ctx context.Context, key string) (*IdempotencyResponse, bool, error) {
	resp, found, err := cache.Get[IdempotencyResponse](s.cache, ctx, dataKey(key))
	if err != nil {
		return nil, false, err
	}
	return resp, found, nil
}

// SaveResponse stores the finished response, then releases the lock so
// waiters flip from 409 to replay.
func (s *Store) SaveResponse(ctx context.Context, key string, resp IdempotencyResponse) error {
	if err := cache.Set(s.cache, ctx, dataKey(key), resp, dataTTL); err != nil {
		return errors.New(errors.ErrInternal, "Internal error. Please contact support.", err)
	}

	// The response is durable now; an undeleted lock only delays
	// waiters until its TTL runs out.
	_ = cache.Del(s.cache, ctx, lockKey(key))

	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_ = cache.Del(s.cache, ctx, lockKey(key), dataKey(key))
	return nil
}
