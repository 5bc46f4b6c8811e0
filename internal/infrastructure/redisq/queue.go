package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atelier-api/internal/application/delivery"
	"github.com/atelier-api/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueKey is the list messages are pushed to.
const DefaultQueueKey = "otp:deliveries"

// Queue implements delivery.Dispatcher by enqueueing messages for a Worker.
type Queue struct {
	client *redis.Client
	key    string
}

func NewQueue(client *redis.Client, key string) *Queue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &Queue{client: client, key: key}
}

func (q *Queue) Dispatch(ctx context.Context, msg delivery.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue delivery: %v: %w", err, domain.ErrDependency)
	}
	return nil
}

// Worker pops queued messages and hands them to the real transport.
type Worker struct {
	client *redis.Client
	key    string
	next   delivery.Dispatcher
	logger *slog.Logger
	poll   time.Duration
}

func NewWorker(client *redis.Client, key string, next delivery.Dispatcher, logger *slog.Logger) *Worker {
	if key == "" {
		key = DefaultQueueKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{client: client, key: key, next: next, logger: logger, poll: time.Second}
}

// Run blocks until ctx is cancelled. Failed deliveries are logged and dropped;
// the user can always ask for a fresh code.
func (w *Worker) Run(ctx context.Context) {
	for ctx.Err() == nil {
		res, err := w.client.BRPop(ctx, w.poll, w.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("delivery queue pop failed", "err", err)
			time.Sleep(w.poll)
			continue
		}
		// BRPOP returns [key, value].
		w.handle(ctx, res[1])
	}
}

// Drain delivers everything currently queued and returns how many messages it handled.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		payload, err := w.client.RPop(ctx, w.key).Result()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		w.handle(ctx, payload)
		n++
	}
}

func (w *Worker) handle(ctx context.Context, payload string) {
	var msg delivery.Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		w.logger.Error("dropping undecodable delivery", "err", err)
		return
	}
	if err := w.next.Dispatch(ctx, msg); err != nil {
		w.logger.Warn("otp delivery failed", "channel", msg.Channel, "kind", msg.Kind, "err", err)
	}
}
