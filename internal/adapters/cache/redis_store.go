package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementBelowScript creates the counter with a millisecond expiry, or
// increments it while it is below the limit. A counter at the limit is left
// untouched so the window never moves.
var incrementBelowScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
	redis.call('SET', KEYS[1], '1', 'PX', ARGV[2])
	return {1, 1}
end
current = tonumber(current)
if current >= tonumber(ARGV[1]) then
	return {current, 0}
end
return {redis.call('INCR', KEYS[1]), 1}
`)

// RedisStore implements ports.CacheStore on a single Redis client.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (s *RedisStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("set %s: ttl must be positive", key)
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("setnx %s: ttl must be positive", key)
	}
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// -2 (missing) and -1 (no expiry) come back as negative durations.
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (s *RedisStore) IncrementBelow(ctx context.Context, key string, limit int64, window time.Duration) (int64, bool, error) {
	if limit <= 0 || window <= 0 {
		return 0, false, fmt.Errorf("increment %s: limit and window must be positive", key)
	}
	res, err := incrementBelowScript.Run(ctx, s.client, []string{key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, false, err
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("increment %s: unexpected script reply of length %d", key, len(res))
	}
	return res[0], res[1] == 1, nil
}

// Keys lists keys matching pattern using SCAN. Used by operator tooling only.
func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, keys...)
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
