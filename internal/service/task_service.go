package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasksync/internal/database"
	"tasksync/internal/models"
	syncengine "tasksync/internal/sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrTaskNotFound is re-exported so handlers do not import the database layer.
var ErrTaskNotFound = database.ErrTaskNotFound

// TaskService is the local-store side of the engine: every mutation writes the
// task row and appends the matching entry to the outbound queue, so the record
// stays writable regardless of connectivity.
type TaskService struct {
	db    *database.DB
	queue *syncengine.Queue
	log   zerolog.Logger
}

func NewTaskService(db *database.DB, queue *syncengine.Queue, logger *zerolog.Logger) *TaskService {
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "task_service").Logger()
	}
	return &TaskService{db: db, queue: queue, log: log}
}

// CreateTaskInput carries the caller-supplied fields of a new task.
type CreateTaskInput struct {
	ID          string
	Title       string
	Description string
}

// UpdateTaskInput carries the mutable fields of an update; nil means "leave
// unchanged".
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Completed   *bool
}

// CreateTask persists a new pending task and enqueues its create mutation.
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errors.New("title is required")
	}

	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	task := models.Task{
		ID:          id,
		Title:       title,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
		SyncStatus:  models.SyncStatusPending,
	}

	if err := s.db.CreateTask(ctx, &task); err != nil {
		return nil, err
	}
	if _, err := s.queue.Enqueue(ctx, task.ID, models.OpCreate, task); err != nil {
		return nil, fmt.Errorf("enqueue create: %w", err)
	}

	s.log.Info().Str("task_id", task.ID).Msg("task created")
	return &task, nil
}

// UpdateTask applies the changed fields, resets the task to pending and
// enqueues an update mutation with the fresh snapshot.
func (s *TaskService) UpdateTask(ctx context.Context, id string, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.db.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.IsDeleted {
		return nil, ErrTaskNotFound
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, errors.New("title cannot be empty")
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Completed != nil {
		task.Completed = *input.Completed
	}

	task.UpdatedAt = time.Now().UTC()
	task.SyncStatus = models.SyncStatusPending

	if err := s.db.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	if _, err := s.queue.Enqueue(ctx, task.ID, models.OpUpdate, *task); err != nil {
		return nil, fmt.Errorf("enqueue update: %w", err)
	}

	return task, nil
}

// DeleteTask soft-deletes the task and enqueues a delete mutation. The row is
// never removed.
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	task, err := s.db.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if task.IsDeleted {
		return ErrTaskNotFound
	}

	task.IsDeleted = true
	task.UpdatedAt = time.Now().UTC()
	task.SyncStatus = models.SyncStatusPending

	if err := s.db.UpdateTask(ctx, task); err != nil {
		return err
	}
	if _, err := s.queue.Enqueue(ctx, task.ID, models.OpDelete, *task); err != nil {
		return fmt.Errorf("enqueue delete: %w", err)
	}

	s.log.Info().Str("task_id", task.ID).Msg("task soft-deleted")
	return nil
}

// GetTask returns a task; soft-deleted tasks are hidden.
func (s *TaskService) GetTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.db.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.IsDeleted {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// ListTasks returns tasks, newest first.
func (s *TaskService) ListTasks(ctx context.Context, includeDeleted bool) ([]models.Task, error) {
	return s.db.ListTasks(ctx, includeDeleted)
}
