package redisStore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, key).Result()
	return count > 0, err
}

// list operations back the chat history store

func (s *Store) ListPush(ctx context.Context, key string, value interface{}) error {
	return s.client.RPush(ctx, key, value).Err()
}

// ListTail returns up to limit entries from the end of the list, oldest of
// the window first.
func (s *Store) ListTail(ctx context.Context, key string, limit int64) ([]string, error) {
	length, err := s.client.LLen(ctx, key).Result()
	if err != nil || length < 1 {
		return []string{}, err
	}
	start := int64(0)
	if length > limit {
		start = -limit
	}
	return s.client.LRange(ctx, key, start, -1).Result()
}
