package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// fixedWindow increments KEYS[1] and starts its window on the first hit, atomically,
// so a crash between the two steps cannot leave a counter without expiry.
// Returns {count, pttl_ms}.
var fixedWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {count, redis.call("PTTL", KEYS[1])}
`)

// DistributedRateLimiter keeps fixed-window counters in Redis so every instance
// enforces the same /auth budget
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a Redis-backed limiter. Keys are stored as <prefix>:<caller>.
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "verdict:ratelimit"
	}
	return &DistributedRateLimiter{redis: redisClient, config: config, prefix: prefix}
}

// Config returns the limiter configuration
func (rl *DistributedRateLimiter) Config() *RateLimitConfig {
	return rl.config
}

func (rl *DistributedRateLimiter) key(caller string) string {
	return rl.prefix + ":" + caller
}

// Allow counts one request for caller. On Redis failure the request is allowed and
// the error returned, so an outage never locks users out of signup and login.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, caller string) (Limit, error) {
	window := rl.config.WindowDuration
	res, err := fixedWindow.Run(ctx, rl.redis, []string{rl.key(caller)}, window.Milliseconds()).Slice()
	if err != nil {
		return Limit{Allowed: true}, fmt.Errorf("rate limit store: %w", err)
	}
	if len(res) != 2 {
		return Limit{Allowed: true}, fmt.Errorf("rate limit store: unexpected reply %v", res)
	}

	count, _ := res[0].(int64)
	resetIn := window
	if pttl, ok := res[1].(int64); ok && pttl > 0 {
		resetIn = time.Duration(pttl) * time.Millisecond
	}

	remaining := rl.config.RequestsPerWindow - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Limit{
		Allowed:   count <= int64(rl.config.RequestsPerWindow),
		Remaining: remaining,
		ResetIn:   resetIn,
	}, nil
}
