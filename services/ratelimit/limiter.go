package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript keeps one sorted set per window: member is a unique
// request id, score is its arrival time in ms.
//
// KEYS[1] window key
// ARGV[1] now (ms), ARGV[2] cutoff (now - window, ms), ARGV[3] window (ms),
// ARGV[4] limit, ARGV[5] member
// Returns {admitted, count, oldest score}.
var slidingWindowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
local admitted = 0
if count < tonumber(ARGV[4]) then
  redis.call('ZADD', KEYS[1], ARGV[1], ARGV[5])
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
  count = count + 1
  admitted = 1
end

local oldest = tonumber(ARGV[1])
local head = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if head[2] then
  oldest = tonumber(head[2])
end
return {admitted, count, oldest}
`)

// Decision is the outcome of one admission check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter is a sliding window log backed by Redis
type Limiter struct {
	client redis.UniversalClient
	now    func() time.Time
}

// LimiterOption customizes a Limiter
type LimiterOption func(*Limiter)

// WithClock overrides the limiter's clock
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a new limiter
func NewLimiter(client redis.UniversalClient, opts ...LimiterOption) *Limiter {
	l := &Limiter{client: client, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records a request against key if the window has room
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := l.now()
	nowMs := now.UnixMilli()
	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())

	res, err := slidingWindowScript.Run(ctx, l.client, []string{key},
		nowMs, nowMs-window.Milliseconds(), window.Milliseconds(), limit, member).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate rate limit window: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("unexpected rate limit reply length %d", len(res))
	}

	count := int(res[1])
	d := Decision{
		Allowed:   res[0] == 1,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   time.UnixMilli(res[2]).Add(window),
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = retryAfter(d.ResetAt.Sub(now))
	}
	return d, nil
}

// retryAfter rounds up to whole seconds, never below one
func retryAfter(wait time.Duration) time.Duration {
	if wait <= time.Second {
		return time.Second
	}
	secs := (wait + time.Second - 1) / time.Second
	return secs * time.Second
}
