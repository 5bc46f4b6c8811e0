package redisq

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLimiter counts verification attempts per contact in a fixed window.
type AttemptLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewAttemptLimiter(client *redis.Client, limit int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{client: client, limit: limit, window: window}
}

// Allow records one attempt for key and reports whether it is within the limit.
// The window starts with the first attempt. The counter and its TTL are
// created in one transaction.
func (l *AttemptLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := "verify:attempts:" + key
	var n *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, l.window)
		n = pipe.Incr(ctx, k)
		return nil
	})
	if err != nil {
		return false, err
	}
	return n.Val() <= int64(l.limit), nil
}
