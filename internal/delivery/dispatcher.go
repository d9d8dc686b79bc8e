package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"contact-harvester/internal/entity"
)

type TaskRepo interface {
	IncrementDeliveryAttempts(ctx context.Context, id uuid.UUID) error
}

// Payload is what the callback endpoint receives.
type Payload struct {
	ID          string            `json:"id"`
	Status      entity.TaskStatus `json:"status"`
	Result      json.RawMessage   `json:"result,omitempty"`
	ErrorReason *string           `json:"error_reason,omitempty"`
}

// Dispatcher posts the terminal payload to the task's callback URL with a
// bounded number of attempts and exponential backoff between them. Every
// attempt bumps delivery_attempts on the record. Exhausting the budget is
// logged and returned, but never written into the task's own status.
type Dispatcher struct {
	client         *http.Client
	repo           TaskRepo
	maxAttempts    int
	initialBackoff time.Duration
}

func NewDispatcher(repo TaskRepo, maxAttempts int, initialBackoff time.Duration) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if initialBackoff <= 0 {
		initialBackoff = 2 * time.Second
	}
	return &Dispatcher{
		client:         &http.Client{Timeout: 10 * time.Second},
		repo:           repo,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
	}
}

func (d *Dispatcher) Deliver(ctx context.Context, task *entity.Task) error {
	body, err := json.Marshal(Payload{
		ID:          task.ID.String(),
		Status:      task.Status,
		Result:      task.Result,
		ErrorReason: task.ErrorReason,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	attempt := 0
	operation := func() error {
		attempt++
		if err := d.repo.IncrementDeliveryAttempts(ctx, task.ID); err != nil {
			log.Printf("[delivery] task_id=%s bump attempts error=%v", task.ID.String(), err)
		}
		if err := d.post(ctx, task.CallbackURL, body); err != nil {
			log.Printf("[delivery] task_id=%s attempt=%d error=%v", task.ID.String(), attempt, err)
			return err
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.initialBackoff
	bo := backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(d.maxAttempts-1)),
		ctx,
	)

	if err := backoff.Retry(operation, bo); err != nil {
		return fmt.Errorf("delivery to %s failed after %d attempts: %w", task.CallbackURL, attempt, err)
	}

	log.Printf("[delivery] task_id=%s delivered attempts=%d", task.ID.String(), attempt)
	return nil
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}
