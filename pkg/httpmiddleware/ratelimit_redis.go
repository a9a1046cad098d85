package httpmiddleware

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a sliding window limiter shared by every API replica. Each
// request is a member of a sorted set scored by its timestamp; members older
// than the window are trimmed before counting.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	max    int
	window time.Duration
}

// NewRedisLimiter creates a RedisLimiter storing keys under prefix.
func NewRedisLimiter(client redis.UniversalClient, prefix string, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, max: max, window: window}
}

// Allow registers a request for key at now.
func (l *RedisLimiter) Allow(ctx context.Context, key string, now time.Time) (Decision, error) {
	redisKey := l.prefix + key
	cutoff := now.Add(-l.window).UnixNano()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	count := pipe.ZCard(ctx, redisKey)
	pipe.PExpire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, errors.Wrap(err, "rate limit pipeline")
	}

	current := int(count.Val())
	return Decision{
		Allowed:   current <= l.max,
		Remaining: max(l.max-current, 0),
		ResetAt:   now.Add(l.window),
	}, nil
}
