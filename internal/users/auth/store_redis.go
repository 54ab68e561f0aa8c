// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// incrWithTTL increments KEYS[1] and starts its ARGV[1] millisecond lifetime
// on the first increment.
var incrWithTTL = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisFlowCache implements [FlowCache] on Redis.
type RedisFlowCache struct {
	client redis.UniversalClient
}

// NewRedisFlowCache creates a Redis-backed [FlowCache].
func NewRedisFlowCache(client redis.UniversalClient) *RedisFlowCache {
	return &RedisFlowCache{client: client}
}

/*
Set stores value under key with a TTL.

Parameters:
  - context: context.Context
  - key: string
  - value: string
  - ttl: time.Duration

Returns:
  - error: Execution errors
*/
func (cache *RedisFlowCache) Set(context context.Context, key, value string, ttl time.Duration) error {
	if err := cache.client.Set(context, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis_flow_cache_set_failed: %w", err)
	}
	return nil
}

/*
SetNX stores value only if key does not exist yet.

Returns:
  - bool: true if the key was written
  - error: Execution errors
*/
func (cache *RedisFlowCache) SetNX(context context.Context, key, value string, ttl time.Duration) (bool, error) {
	written, err := cache.client.SetNX(context, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis_flow_cache_setnx_failed: %w", err)
	}
	return written, nil
}

/*
Get retrieves the value stored under key.

Description: Returns ErrCacheMiss if the key is absent or expired.
*/
func (cache *RedisFlowCache) Get(context context.Context, key string) (string, error) {
	value, err := cache.client.Get(context, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("redis_flow_cache_get_failed: %w", err)
	}
	return value, nil
}

// TTL returns the remaining lifetime of key. Missing or persistent keys
// report zero.
func (cache *RedisFlowCache) TTL(context context.Context, key string) (time.Duration, error) {
	remaining, err := cache.client.TTL(context, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis_flow_cache_ttl_failed: %w", err)
	}
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Delete removes keys.
func (cache *RedisFlowCache) Delete(context context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := cache.client.Del(context, keys...).Err(); err != nil {
		return fmt.Errorf("redis_flow_cache_delete_failed: %w", err)
	}
	return nil
}

/*
CompareAndDelete atomically deletes key if it still holds expected.

Description: Runs as a Lua script so that two concurrent consumers of the same
one-time value cannot both succeed.

Returns:
  - bool: true if this call removed the key
  - error: Execution errors
*/
func (cache *RedisFlowCache) CompareAndDelete(context context.Context, key, expected string) (bool, error) {
	deleted, err := compareAndDelete.Run(context, cache.client, []string{key}, expected).Int()
	if err != nil {
		return false, fmt.Errorf("redis_flow_cache_compare_and_delete_failed: %w", err)
	}
	return deleted == 1, nil
}

// Incr increments a counter whose lifetime starts with the first increment.
func (cache *RedisFlowCache) Incr(context context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := incrWithTTL.Run(context, cache.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis_flow_cache_incr_failed: %w", err)
	}
	return count, nil
}
