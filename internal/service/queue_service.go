package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type Queue interface {
	Enqueue(ctx context.Context, taskID string) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, taskID string) error
	RequeueStale(ctx context.Context, max int64) (int64, error)
}

// redisQueue implements a reliable queue using Redis lists.
// Claim: BRPOPLPUSH queue -> processing
// Ack:   LREM from processing
// A single lane is enough here: tasks carry no priorities.
type redisQueue struct {
	rdb           *redis.Client
	queueKey      string
	processingKey string
}

func NewRedisQueue(rdb *redis.Client, queueKey, processingKey string) Queue {
	return &redisQueue{
		rdb:           rdb,
		queueKey:      queueKey,
		processingKey: processingKey,
	}
}

func (q *redisQueue) Enqueue(ctx context.Context, taskID string) error {
	return q.rdb.LPush(ctx, q.queueKey, taskID).Err()
}

// ClaimBlocking blocks up to timeout waiting for a task id.
// Returns redis.Nil when nothing arrived in time.
func (q *redisQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = time.Second
	}
	id, err := q.rdb.BRPopLPush(ctx, q.queueKey, q.processingKey, timeout).Result()
	if err != nil {
		return "", err
	}
	return id, nil
}

func (q *redisQueue) Ack(ctx context.Context, taskID string) error {
	return q.rdb.LRem(ctx, q.processingKey, 1, taskID).Err()
}

// RequeueStale moves items from processing back to the queue.
// It's a simple "reaper": at-least-once delivery after a worker crash.
func (q *redisQueue) RequeueStale(ctx context.Context, max int64) (int64, error) {
	var moved int64

	for i := int64(0); i < max; i++ {
		id, err := q.rdb.RPopLPush(ctx, q.processingKey, q.queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return moved, err
		}
		if id != "" {
			moved++
		}
	}

	return moved, nil
}
