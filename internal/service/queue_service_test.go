package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"contact-harvester/internal/service"
)

func newTestQueue(t *testing.T) (service.Queue, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return service.NewRedisQueue(rdb, "tasks:queue", "tasks:processing"), s
}

func TestRedisQueue_EnqueueClaimAck(t *testing.T) {
	ctx := context.Background()
	q, s := newTestQueue(t)

	if err := q.Enqueue(ctx, "task-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	id, err := q.ClaimBlocking(ctx, time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if id != "task-1" {
		t.Fatalf("expected task-1, got %s", id)
	}

	// claimed id sits in the processing list until acked
	if got, _ := s.List("tasks:processing"); len(got) != 1 || got[0] != "task-1" {
		t.Fatalf("expected task-1 in processing, got %v", got)
	}

	if err := q.Ack(ctx, id); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if got, _ := s.List("tasks:processing"); len(got) != 0 {
		t.Fatalf("expected empty processing after ack, got %v", got)
	}
}

func TestRedisQueue_ClaimTimesOutEmpty(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	_, err := q.ClaimBlocking(ctx, 50*time.Millisecond)
	if !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil on empty queue, got %v", err)
	}
}

func TestRedisQueue_FIFOOrder(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, id); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		got, err := q.ClaimBlocking(ctx, time.Second)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestRedisQueue_RequeueStale(t *testing.T) {
	ctx := context.Background()
	q, s := newTestQueue(t)

	if err := q.Enqueue(ctx, "stuck-task"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.ClaimBlocking(ctx, time.Second); err != nil {
		t.Fatalf("claim: %v", err)
	}
	// simulate a crashed worker: claimed but never acked

	moved, err := q.RequeueStale(ctx, 100)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if moved != 1 {
		t.Fatalf("expected 1 requeued task, got %d", moved)
	}
	if got, _ := s.List("tasks:queue"); len(got) != 1 || got[0] != "stuck-task" {
		t.Fatalf("expected stuck-task back in queue, got %v", got)
	}

	id, err := q.ClaimBlocking(ctx, time.Second)
	if err != nil || id != "stuck-task" {
		t.Fatalf("expected to re-claim stuck-task, got %s err=%v", id, err)
	}
}
