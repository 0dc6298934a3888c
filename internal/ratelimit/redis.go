package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript counts one hit atomically.
// KEYS[1] = counter key
// ARGV[1] = window length in milliseconds
// Returns {count, pttl}.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
    ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore is a fixed-window counter shared by every instance pointing at the same Redis.
// Redis key expiry replaces explicit eviction.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "giftlink:ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisClient builds a client for addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (s *RedisStore) Check(ctx context.Context, key string, p Policy) (Result, error) {
	k := fmt.Sprintf("%s:%s", s.prefix, key)
	res, err := fixedWindowScript.Run(ctx, s.client, []string{k}, p.Window.Milliseconds()).Result()
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return Result{}, fmt.Errorf("redis rate limit: unexpected script reply %T", res)
	}
	count, _ := values[0].(int64)
	ttl, _ := values[1].(int64)

	remaining := p.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   int(count) <= p.Max,
		Remaining: remaining,
		ResetAt:   time.Now().Add(time.Duration(ttl) * time.Millisecond),
	}, nil
}

// Ping checks connectivity, used at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
