package worker

import (
	"context"
	"log"
	"time"

	"contact-harvester/internal/service"
)

// Processor handles one claimed task id (implementation: pipeline.Orchestrator).
type Processor interface {
	Process(ctx context.Context, taskID string) error
}

type Pool struct {
	queue      service.Queue
	processor  Processor
	workers    int
	claimDelay time.Duration
}

func NewPool(queue service.Queue, processor Processor, workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
	}
}

func (p *Pool) Run(ctx context.Context) {
	log.Printf("worker pool started: workers=%d", p.workers)

	taskCh := make(chan string)

	for i := 0; i < p.workers; i++ {
		go func(n int) {
			for taskID := range taskCh {
				err := p.processor.Process(ctx, taskID)
				if err != nil {
					log.Printf("[worker-%d] process task %s error: %v", n, taskID, err)
				}

				// Ack either way: the task already reached a terminal state in
				// the store (or failed before any write, in which case the
				// reaper puts the id back into the queue).
				if ackErr := p.queue.Ack(ctx, taskID); ackErr != nil {
					log.Printf("[worker-%d] ack task %s error: %v", n, taskID, ackErr)
				}
			}
		}(i + 1)
	}

	// Listener: atomically claim from queue -> processing
	for {
		select {
		case <-ctx.Done():
			close(taskCh)
			log.Println("worker pool stopped")
			return
		default:
			taskID, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
			if err != nil {
				// timeout/redis.Nil/ctx cancel — not fatal
				continue
			}
			select {
			case taskCh <- taskID:
			case <-ctx.Done():
				close(taskCh)
				return
			}
		}
	}
}
