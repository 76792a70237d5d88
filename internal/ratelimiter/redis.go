package ratelimiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// slidingWindowScript trims the key's sorted set to the current window and
// admits the request when there is room. It returns {allowed, remaining, reset_at_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local window_start = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    redis.call('PEXPIRE', key, window + 1000)
    return {1, limit - count - 1, 0}
else
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local reset_at = 0
    if #oldest >= 2 then
        reset_at = tonumber(oldest[2]) + window
    end
    return {0, 0, reset_at}
end
`)

// SlidingWindowRateLimiter shares its counters through redis so every API
// instance sees the same limits. It fails open when redis is unavailable.
type SlidingWindowRateLimiter struct {
	client  redis.Scripter
	limit   int
	window  time.Duration
	prefix  string
	timeout time.Duration
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewSlidingWindowLimiter(client redis.Scripter, limit int, window time.Duration, logger *zap.SugaredLogger) *SlidingWindowRateLimiter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SlidingWindowRateLimiter{
		client:  client,
		limit:   limit,
		window:  window,
		prefix:  "storefront:ratelimit:",
		timeout: 200 * time.Millisecond,
		logger:  logger,
		now:     time.Now,
	}
}

func (rl *SlidingWindowRateLimiter) Allow(key string) (bool, time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	now := rl.now().UnixMilli()
	res, err := slidingWindowScript.Run(ctx, rl.client, []string{rl.prefix + key},
		rl.limit, rl.window.Milliseconds(), now,
	).Int64Slice()
	if err != nil || len(res) != 3 {
		rl.logger.Warnw("rate limiter unavailable, allowing request", "key", key, "error", err)
		return true, 0
	}

	if res[0] == 1 {
		return true, 0
	}

	retryAfter := time.Duration(res[2]-now) * time.Millisecond
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	return false, retryAfter
}
