package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate caps how many pipeline runs may hold a browser-rendering session at
// once. Only the harvest/extract stages are gated; search and verify run
// ungated. Waiters are admitted in FIFO order and queue without bound.
type Gate struct {
	sem *semaphore.Weighted
}

func NewGate(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{sem: semaphore.NewWeighted(int64(capacity))}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

func (g *Gate) Release() {
	g.sem.Release(1)
}
