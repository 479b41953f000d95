package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tasksync/internal/models"
)

// ErrTaskNotFound is returned when a task id does not exist in the store.
var ErrTaskNotFound = errors.New("task not found")

const taskColumns = `id, title, description, completed, created_at, updated_at, is_deleted, sync_status, remote_id, last_synced_at`

// CreateTask inserts a new task row.
func (db *DB) CreateTask(ctx context.Context, task *models.Task) error {
	query := `INSERT INTO tasks (` + taskColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Completed,
		task.CreatedAt,
		task.UpdatedAt,
		task.IsDeleted,
		task.SyncStatus,
		task.RemoteID,
		task.LastSyncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask returns a task by id, including soft-deleted rows.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	var task models.Task
	err := db.db.QueryRowContext(ctx, query, id).Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Completed,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.IsDeleted,
		&task.SyncStatus,
		&task.RemoteID,
		&task.LastSyncedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return &task, nil
}

// ListTasks returns tasks ordered by creation time, newest first.
func (db *DB) ListTasks(ctx context.Context, includeDeleted bool) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if !includeDeleted {
		query += ` WHERE is_deleted = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var task models.Task
		err := rows.Scan(
			&task.ID,
			&task.Title,
			&task.Description,
			&task.Completed,
			&task.CreatedAt,
			&task.UpdatedAt,
			&task.IsDeleted,
			&task.SyncStatus,
			&task.RemoteID,
			&task.LastSyncedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return tasks, nil
}

// UpdateTask overwrites the mutable fields of an existing task.
func (db *DB) UpdateTask(ctx context.Context, task *models.Task) error {
	query := `UPDATE tasks
              SET title = ?, description = ?, completed = ?, updated_at = ?, is_deleted = ?, sync_status = ?
              WHERE id = ?`
	result, err := db.db.ExecContext(ctx, query,
		task.Title,
		task.Description,
		task.Completed,
		task.UpdatedAt,
		task.IsDeleted,
		task.SyncStatus,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// UpdateTaskSyncStatus sets the sync status of a single task.
func (db *DB) UpdateTaskSyncStatus(ctx context.Context, id, status string) error {
	query := `UPDATE tasks SET sync_status = ? WHERE id = ?`
	_, err := db.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update task sync status: %w", err)
	}
	return nil
}

// MarkTasksInProgress flips every listed task to in-progress before a batch
// goes out on the wire.
func (db *DB) MarkTasksInProgress(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := db.UpdateTaskSyncStatus(ctx, id, models.SyncStatusInProgress); err != nil {
			return err
		}
	}
	return nil
}

// MarkTaskSynced records a successful sync outcome: status, the remote-assigned
// identity (if any) and the last-synced timestamp.
func (db *DB) MarkTaskSynced(ctx context.Context, id string, remoteID *string, syncedAt time.Time) error {
	query := `UPDATE tasks
              SET sync_status = ?, remote_id = COALESCE(?, remote_id), last_synced_at = ?
              WHERE id = ?`
	_, err := db.db.ExecContext(ctx, query, models.SyncStatusSynced, remoteID, syncedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark task synced: %w", err)
	}
	return nil
}

// ApplyResolvedTask persists a conflict winner and marks the row synced.
func (db *DB) ApplyResolvedTask(ctx context.Context, task *models.Task, syncedAt time.Time) error {
	query := `UPDATE tasks
              SET title = ?, description = ?, completed = ?, updated_at = ?, is_deleted = ?,
                  sync_status = ?, remote_id = COALESCE(?, remote_id), last_synced_at = ?
              WHERE id = ?`
	_, err := db.db.ExecContext(ctx, query,
		task.Title,
		task.Description,
		task.Completed,
		task.UpdatedAt,
		task.IsDeleted,
		models.SyncStatusSynced,
		task.RemoteID,
		syncedAt,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to apply resolved task: %w", err)
	}
	return nil
}

// CountTasksByStatus returns the number of tasks per sync status.
func (db *DB) CountTasksByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT sync_status, COUNT(*) FROM tasks GROUP BY sync_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
