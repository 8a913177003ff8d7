package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter caps sends per relay over a one second sliding window. The
// window is a sorted set of send timestamps trimmed and checked by a Lua
// script so concurrent workers cannot overshoot.
type RateLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
	window      time.Duration
}

var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
    return 0
end
redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window + 1000)
return 1
`)

func NewRateLimiter(redisClient *redis.Client, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
		window:      time.Second,
	}
}

func rlKey(relay string) string {
	return fmt.Sprintf("rl:relay:%s", relay)
}

// Allow reports whether one more send to relay fits in the current
// window. A limit of zero or less disables limiting. Redis errors fail
// open.
func (rl *RateLimiter) Allow(ctx context.Context, relay string, limit int) bool {
	if limit <= 0 {
		return true
	}

	allowed, err := rl.script.Run(ctx, rl.redisClient, []string{rlKey(relay)},
		time.Now().UnixMilli(), rl.window.Milliseconds(), limit, uuid.NewString(),
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "relay", relay, "error", err)
		return true
	}

	if allowed == 0 {
		rl.logger.Debug("relay rate limited", "relay", relay, "limit", limit)
		return false
	}
	return true
}
