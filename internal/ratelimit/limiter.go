package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript counts requests per key in a window that starts with
// the first request. Returns {allowed, remaining, reset_unix}.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local max_requests = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local current_time = tonumber(ARGV[3])

	local current = redis.call('GET', key)

	if current == false then
		redis.call('SET', key, 1, 'EX', window)
		return {1, max_requests - 1, current_time + window}
	end

	current = tonumber(current)
	local ttl = redis.call('TTL', key)
	if current < max_requests then
		redis.call('INCR', key)
		return {1, max_requests - current - 1, current_time + ttl}
	end

	return {0, 0, current_time + ttl}
`)

// Limiter is a Redis-backed fixed window rate limiter.
// The script runs atomically so concurrent requests across instances share one count.
type Limiter struct {
	client      redis.Scripter
	prefix      string
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

// NewLimiter allows maxRequests per window for each key
func NewLimiter(client redis.Scripter, prefix string, maxRequests int, window time.Duration) *Limiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &Limiter{
		client:      client,
		prefix:      prefix,
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Allow checks if a request for key should be allowed
func (l *Limiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	windowSeconds := int(l.window.Seconds())
	if windowSeconds < 1 {
		windowSeconds = 1
	}

	result, err := fixedWindowScript.Run(
		ctx,
		l.client,
		[]string{redisKey},
		l.maxRequests,
		windowSeconds,
		l.now().Unix(),
	).Int64Slice()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	if len(result) != 3 {
		return false, 0, time.Time{}, fmt.Errorf("unexpected rate limit result: %v", result)
	}

	allowed := result[0] == 1
	remaining := int(result[1])
	resetTime := time.Unix(result[2], 0)

	return allowed, remaining, resetTime, nil
}

// MaxRequests returns the maximum number of requests allowed per window
func (l *Limiter) MaxRequests() int {
	return l.maxRequests
}
