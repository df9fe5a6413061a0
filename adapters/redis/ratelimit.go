// Package redis provides a rate limit store shared across gateway instances.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/artpar/lexgate/domain/ratelimit"
	"github.com/artpar/lexgate/ports"
)

// windowScript applies ratelimit.Check atomically on a hash {count, reset}.
// The key expires at reset + block duration, which replaces the sweep.
//
// KEYS[1] = key; ARGV = max, window ms, block ms, now ms.
// Returns {allowed, count, reset ms}.
var windowScript = goredis.NewScript(`
local max = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local block = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
local reset = tonumber(redis.call('HGET', KEYS[1], 'reset') or '0')
if reset == 0 or now >= reset then
  reset = now + window
  redis.call('HSET', KEYS[1], 'count', 1, 'reset', reset)
  redis.call('PEXPIREAT', KEYS[1], reset + block)
  return {1, 1, reset}
end
if count >= max then
  return {0, count, reset}
end
count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {1, count, reset}
`)

// RateLimitStore keeps limiter windows in Redis.
type RateLimitStore struct {
	client *goredis.Client
	prefix string
}

// NewRateLimitStore connects using a redis:// URL.
func NewRateLimitStore(ctx context.Context, redisURL, prefix string) (*RateLimitStore, error) {
	opt, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if prefix == "" {
		prefix = "lexgate:ratelimit:"
	}
	return &RateLimitStore{client: client, prefix: prefix}, nil
}

// CheckAndIncrement runs the window check in a single script call.
func (s *RateLimitStore) CheckAndIncrement(ctx context.Context, key string, cfg ratelimit.Config, now time.Time) (ratelimit.Result, error) {
	vals, err := windowScript.Run(ctx, s.client, []string{s.prefix + key},
		cfg.MaxRequests,
		cfg.Window.Milliseconds(),
		cfg.BlockDuration.Milliseconds(),
		now.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return ratelimit.Result{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 3 {
		return ratelimit.Result{}, fmt.Errorf("rate limit script: unexpected reply %v", vals)
	}
	return resultFrom(vals[0] == 1, int(vals[1]), time.UnixMilli(vals[2]), cfg, now), nil
}

func resultFrom(allowed bool, count int, resetAt time.Time, cfg ratelimit.Config, now time.Time) ratelimit.Result {
	wait := resetAt.Sub(now)
	if wait < 0 {
		wait = 0
	}
	res := ratelimit.Result{Allowed: allowed, ResetIn: wait}
	if !allowed {
		res.RetryAfter = wait
		return res
	}
	if count < cfg.MaxRequests {
		res.Remaining = cfg.MaxRequests - count
	}
	return res
}

// HealthCheck pings the server.
func (s *RateLimitStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RateLimitStore) Close() error {
	return s.client.Close()
}

// Ensure interface compliance.
var _ ports.RateLimitStore = (*RateLimitStore)(nil)
