package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"tasksync/internal/database"
	"tasksync/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Queue is the durable outbound log of pending mutations. One entry per task
// mutation; entries leave only through a terminal outcome (synced or
// dead-lettered).
type Queue struct {
	db  *database.DB
	log zerolog.Logger
}

func NewQueue(db *database.DB, logger *zerolog.Logger) *Queue {
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "sync_queue").Logger()
	}
	return &Queue{db: db, log: log}
}

// Enqueue appends a new immutable entry with retry counter 0. The snapshot is
// the task payload as it looked at enqueue time.
func (q *Queue) Enqueue(ctx context.Context, taskID, operation string, snapshot models.Task) (*models.QueueEntry, error) {
	if taskID == "" {
		return nil, errors.New("task id is required")
	}
	if !models.IsValidOperation(operation) {
		return nil, fmt.Errorf("unknown operation: %s", operation)
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	entry := models.QueueEntry{
		ID:         uuid.NewString(),
		TaskID:     taskID,
		Operation:  operation,
		Payload:    string(payload),
		EnqueuedAt: time.Now().UTC(),
		RetryCount: 0,
	}

	if err := q.db.InsertQueueEntry(ctx, &entry); err != nil {
		return nil, fmt.Errorf("persist queue entry: %w", err)
	}

	q.log.Debug().Str("entry_id", entry.ID).Str("task_id", taskID).Str("operation", operation).Msg("mutation enqueued")
	return &entry, nil
}

// DrainOrdered returns a snapshot of every current entry in canonical order.
// Entries added after the snapshot is taken are not part of this pass.
func (q *Queue) DrainOrdered(ctx context.Context) ([]models.QueueEntry, error) {
	entries, err := q.db.ListQueueEntries(ctx)
	if err != nil {
		return nil, err
	}
	SortCanonical(entries)
	return entries, nil
}

// RecordFailure bumps the entry's retry counter, stores the error message and
// returns the new counter value.
func (q *Queue) RecordFailure(ctx context.Context, entryID, errMsg string) (int, error) {
	return q.db.IncrementQueueEntryRetry(ctx, entryID, errMsg)
}

// Remove deletes an entry that reached a terminal outcome.
func (q *Queue) Remove(ctx context.Context, entryID string) error {
	return q.db.DeleteQueueEntry(ctx, entryID)
}

// RemoveAllForTask deletes every entry owned by the task.
func (q *Queue) RemoveAllForTask(ctx context.Context, taskID string) error {
	return q.db.DeleteQueueEntriesForTask(ctx, taskID)
}

// Depth returns the number of entries currently queued.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	return q.db.CountQueueEntries(ctx)
}

// SortCanonical orders entries by owning task id (lexicographic), then enqueue
// time ascending, then operation priority create < update < delete. All
// pending mutations for one task form a contiguous, causally-ordered run, so
// batching never interleaves tasks.
func SortCanonical(entries []models.QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
			return a.EnqueuedAt.Before(b.EnqueuedAt)
		}
		return models.OperationPriority(a.Operation) < models.OperationPriority(b.Operation)
	})
}
