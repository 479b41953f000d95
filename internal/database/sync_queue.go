package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tasksync/internal/models"
)

// ErrEntryNotFound is returned when a queue entry id does not exist.
var ErrEntryNotFound = errors.New("queue entry not found")

const queueColumns = `id, task_id, operation, payload, enqueued_at, retry_count, last_error`

// InsertQueueEntry durably appends a new entry to the outbound queue.
func (db *DB) InsertQueueEntry(ctx context.Context, entry *models.QueueEntry) error {
	query := `INSERT INTO sync_queue (` + queueColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.db.ExecContext(ctx, query,
		entry.ID,
		entry.TaskID,
		entry.Operation,
		entry.Payload,
		entry.EnqueuedAt,
		entry.RetryCount,
		entry.LastError,
	)
	if err != nil {
		return fmt.Errorf("failed to insert queue entry: %w", err)
	}
	return nil
}

// ListQueueEntries returns a snapshot of every current entry in insertion
// order. Canonical ordering is imposed by the sync package.
func (db *DB) ListQueueEntries(ctx context.Context) ([]models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM sync_queue`
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		var e models.QueueEntry
		err := rows.Scan(&e.ID, &e.TaskID, &e.Operation, &e.Payload, &e.EnqueuedAt, &e.RetryCount, &e.LastError)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetQueueEntry returns a single entry by id.
func (db *DB) GetQueueEntry(ctx context.Context, id string) (*models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM sync_queue WHERE id = ?`

	var e models.QueueEntry
	err := db.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.TaskID, &e.Operation, &e.Payload, &e.EnqueuedAt, &e.RetryCount, &e.LastError,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return &e, nil
}

// IncrementQueueEntryRetry atomically bumps the retry counter, stores the
// error message and returns the updated counter.
func (db *DB) IncrementQueueEntryRetry(ctx context.Context, id, errMsg string) (int, error) {
	query := `UPDATE sync_queue SET retry_count = retry_count + 1, last_error = ? WHERE id = ?`
	result, err := db.db.ExecContext(ctx, query, errMsg, id)
	if err != nil {
		return 0, fmt.Errorf("failed to increment retry count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return 0, ErrEntryNotFound
	}

	var count int
	if err := db.db.QueryRowContext(ctx, `SELECT retry_count FROM sync_queue WHERE id = ?`, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to read retry count: %w", err)
	}
	return count, nil
}

// DeleteQueueEntry removes an entry once it reached a terminal outcome.
func (db *DB) DeleteQueueEntry(ctx context.Context, id string) error {
	_, err := db.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete queue entry: %w", err)
	}
	return nil
}

// DeleteQueueEntriesForTask removes every entry owned by a task.
func (db *DB) DeleteQueueEntriesForTask(ctx context.Context, taskID string) error {
	_, err := db.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete queue entries for task: %w", err)
	}
	return nil
}

// CountQueueEntries returns the current queue depth.
func (db *DB) CountQueueEntries(ctx context.Context) (int, error) {
	var count int
	err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}
	return count, nil
}

// InsertDeadLetter archives an exhausted queue entry.
func (db *DB) InsertDeadLetter(ctx context.Context, dl *models.DeadLetter) error {
	query := `INSERT INTO dead_letters (id, task_id, operation, payload, last_error, failed_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	_, err := db.db.ExecContext(ctx, query,
		dl.ID,
		dl.TaskID,
		dl.Operation,
		dl.Payload,
		dl.LastError,
		dl.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}
	return nil
}

// ListDeadLetters returns the archive, newest failures first.
func (db *DB) ListDeadLetters(ctx context.Context) ([]models.DeadLetter, error) {
	query := `SELECT id, task_id, operation, payload, last_error, failed_at
              FROM dead_letters ORDER BY failed_at DESC`
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	var letters []models.DeadLetter
	for rows.Next() {
		var dl models.DeadLetter
		err := rows.Scan(&dl.ID, &dl.TaskID, &dl.Operation, &dl.Payload, &dl.LastError, &dl.FailedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		letters = append(letters, dl)
	}
	return letters, rows.Err()
}

// MoveEntryToDeadLetter archives an entry and deletes it from the queue in one
// transaction, so an entry can never exist in both places.
func (db *DB) MoveEntryToDeadLetter(ctx context.Context, entry *models.QueueEntry, finalError string, failedAt time.Time) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO dead_letters (id, task_id, operation, payload, last_error, failed_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TaskID, entry.Operation, entry.Payload, finalError, failedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive entry: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, entry.ID); err != nil {
		return fmt.Errorf("failed to remove archived entry: %w", err)
	}

	return tx.Commit()
}
