package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"guestpass/monitoring"
)

const rateLimitPrefix = "ratelimit:"

// rateLimitScript is one atomic check-and-increment. When the counter is
// already at the limit nothing is written; otherwise the counter is bumped
// and the window TTL is set on first use. Returns {count, pttl_ms, allowed}.
const rateLimitScript = `
local current = redis.call('GET', KEYS[1])
if current and tonumber(current) >= tonumber(ARGV[2]) then
  return {tonumber(current), redis.call('PTTL', KEYS[1]), 0}
end
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {count, redis.call('PTTL', KEYS[1]), 1}
`

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type RateLimiter struct {
	redis      *redis.Client
	maxRetries int

	// cleanupChance is the 1-in-N probability of an opportunistic sweep per
	// Check call. Zero disables sweeping.
	cleanupChance int
}

func NewRateLimiter(redisClient *redis.Client, maxRetries int) *RateLimiter {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RateLimiter{
		redis:         redisClient,
		maxRetries:    maxRetries,
		cleanupChance: 100,
	}
}

// Check applies the sliding window for key. The first call in a window (or
// after expiry) counts 1; calls at or over maxAttempts are blocked with zero
// remaining and the existing expiry. Safe under concurrent callers for the
// same key because the whole read-then-write is one script.
func (r *RateLimiter) Check(ctx context.Context, key string, maxAttempts int, window time.Duration) (*Decision, error) {
	fullKey := rateLimitPrefix + key

	var (
		res any
		err error
	)
	for attempt := 0; ; attempt++ {
		res, err = r.redis.Eval(ctx, rateLimitScript,
			[]string{fullKey},
			window.Milliseconds(), maxAttempts,
		).Result()
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// A reply from the server means the script itself was rejected;
		// retrying the same script cannot succeed. Only connectivity
		// failures are worth another attempt.
		var redisErr redis.Error
		if errors.As(err, &redisErr) {
			break
		}
		if attempt+1 >= r.maxRetries {
			break
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}

	values, ok := res.([]any)
	if !ok || len(values) != 3 {
		return nil, fmt.Errorf("rate limit check: unexpected reply %v", res)
	}
	count, _ := values[0].(int64)
	pttl, _ := values[1].(int64)
	allowed, _ := values[2].(int64)

	resetAt := time.Now().Add(window)
	if pttl > 0 {
		resetAt = time.Now().Add(time.Duration(pttl) * time.Millisecond)
	}

	remaining := maxAttempts - int(count)
	if remaining < 0 {
		remaining = 0
	}

	decision := &Decision{
		Allowed:   allowed == 1,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if decision.Allowed {
		monitoring.TrackRateLimit("allowed")
	} else {
		monitoring.TrackRateLimit("blocked")
	}

	r.maybeCleanup(ctx)
	return decision, nil
}

// Reset unconditionally clears a key, e.g. after a verified success.
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, rateLimitPrefix+key).Err(); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	return nil
}

// maybeCleanup occasionally sweeps entries that lost their TTL (a failed
// PEXPIRE leaves an immortal counter behind). Runs on a small fraction of
// calls so no scheduled sweeper is needed.
func (r *RateLimiter) maybeCleanup(ctx context.Context) {
	if r.cleanupChance <= 0 || rand.Intn(r.cleanupChance) != 0 {
		return
	}

	go func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		iter := r.redis.Scan(sweepCtx, 0, rateLimitPrefix+"*", 100).Iterator()
		for iter.Next(sweepCtx) {
			key := iter.Val()
			ttl, err := r.redis.TTL(sweepCtx, key).Result()
			if err != nil {
				return
			}
			if ttl == -1 {
				r.redis.Del(sweepCtx, key)
			}
		}
	}()
}
