package service

import (
	"context"
	"errors"
	"net/url"

	"github.com/google/uuid"

	"contact-harvester/internal/entity"
)

// Репозиторий-порт (реализация: postgresql.TaskRepository)
type TaskRepository interface {
	Create(ctx context.Context, query, callbackURL string) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Task, error)
}

// Small queue port for enqueueing only (the worker side uses the full Queue).
type TaskQueue interface {
	Enqueue(ctx context.Context, taskID string) error
}

type TaskService struct {
	repo  TaskRepository
	queue TaskQueue
}

func NewTaskService(repo TaskRepository, queue TaskQueue) *TaskService {
	return &TaskService{repo: repo, queue: queue}
}

type CreateTaskRequest struct {
	Query       string
	CallbackURL string
}

func (s *TaskService) CreateTask(ctx context.Context, req CreateTaskRequest) (uuid.UUID, error) {
	if req.Query == "" {
		return uuid.Nil, errors.New("query is required")
	}
	if err := validateCallbackURL(req.CallbackURL); err != nil {
		return uuid.Nil, err
	}

	id, err := s.repo.Create(ctx, req.Query, req.CallbackURL)
	if err != nil {
		return uuid.Nil, err
	}

	if err := s.queue.Enqueue(ctx, id.String()); err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

func (s *TaskService) GetTask(ctx context.Context, id uuid.UUID) (*entity.Task, error) {
	return s.repo.GetByID(ctx, id)
}

func validateCallbackURL(raw string) error {
	if raw == "" {
		return errors.New("callback_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("callback_url must be a valid http(s) url")
	}
	return nil
}
