package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"contact-harvester/internal/entity"
)

var ErrNotFound = errors.New("not found")

type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

func (r *TaskRepository) Create(ctx context.Context, query, callbackURL string) (uuid.UUID, error) {
	const q = `
INSERT INTO tasks (query, callback_url, status, stage)
VALUES ($1, $2, 'PENDING', 'QUEUED')
RETURNING id;
`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, query, callbackURL).Scan(&id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Task, error) {
	const q = `
SELECT id, query, callback_url, status, stage, result, error_reason, delivery_attempts, created_at, updated_at
FROM tasks
WHERE id = $1;
`

	var (
		task        entity.Task
		statusText  string
		stageText   string
		resultBytes []byte
		errText     *string
		createdAt   time.Time
		updatedAt   time.Time
	)

	if err := r.pool.QueryRow(ctx, q, id).Scan(
		&task.ID,
		&task.Query,
		&task.CallbackURL,
		&statusText,
		&stageText,
		&resultBytes, // NULL => nil
		&errText,     // NULL => nil
		&task.DeliveryAttempts,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	task.Status = entity.TaskStatus(statusText)
	task.Stage = entity.TaskStage(stageText)
	if resultBytes != nil {
		task.Result = json.RawMessage(resultBytes)
	}
	task.ErrorReason = errText
	task.CreatedAt = createdAt
	task.UpdatedAt = updatedAt

	return &task, nil
}

// MarkInProgress moves a PENDING task to IN_PROGRESS. The WHERE guard keeps
// the transition forward-only: a task already past PENDING is not touched.
func (r *TaskRepository) MarkInProgress(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE tasks SET status='IN_PROGRESS', updated_at=now() WHERE id=$1 AND status='PENDING';`

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStage advances the stage marker of an IN_PROGRESS task. Terminal
// tasks are never updated (stage stays frozen at its last value).
func (r *TaskRepository) UpdateStage(ctx context.Context, id uuid.UUID, stage entity.TaskStage) error {
	const q = `UPDATE tasks SET stage=$2, updated_at=now() WHERE id=$1 AND status='IN_PROGRESS';`

	tag, err := r.pool.Exec(ctx, q, id, string(stage))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TaskRepository) SetResultSuccess(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	const q = `
UPDATE tasks SET status='SUCCESS', stage='DONE', result=$2, error_reason=NULL, updated_at=now()
WHERE id=$1 AND status='IN_PROGRESS';
`

	tag, err := r.pool.Exec(ctx, q, id, result)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TaskRepository) SetResultFailure(ctx context.Context, id uuid.UUID, reason string) error {
	const q = `
UPDATE tasks SET status='FAILURE', result=NULL, error_reason=$2, updated_at=now()
WHERE id=$1 AND status='IN_PROGRESS';
`

	tag, err := r.pool.Exec(ctx, q, id, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TaskRepository) IncrementDeliveryAttempts(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE tasks SET delivery_attempts=delivery_attempts+1, updated_at=now() WHERE id=$1;`

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
