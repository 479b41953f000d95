package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tasksync/internal/config"
	"tasksync/internal/database"
	"tasksync/internal/events"
	"tasksync/internal/models"

	"github.com/rs/zerolog"
)

// DeadLetterMirror receives a copy of every archived mutation, e.g. for an
// external consumer watching a redis list. Optional.
type DeadLetterMirror interface {
	MirrorDeadLetter(ctx context.Context, dl models.DeadLetter) error
}

// Orchestrator drains the outbound queue in batches, drives transport calls,
// applies conflict resolution and routes failures to retry or dead-letter.
// A single call runs one pass to completion; callers serialize invocations.
type Orchestrator struct {
	db        *database.DB
	queue     *Queue
	transport Transport
	cfg       config.SyncConfig
	bus       *events.Bus
	mirror    DeadLetterMirror
	log       zerolog.Logger
}

func NewOrchestrator(
	db *database.DB,
	queue *Queue,
	transport Transport,
	cfg config.SyncConfig,
	bus *events.Bus,
	mirror DeadLetterMirror,
	logger *zerolog.Logger,
) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = models.DefaultBatchSize
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = models.DefaultRetryBudget
	}

	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "orchestrator").Logger()
	}

	return &Orchestrator{
		db:        db,
		queue:     queue,
		transport: transport,
		cfg:       cfg,
		bus:       bus,
		mirror:    mirror,
		log:       log,
	}
}

// RunSyncPass performs one full synchronization pass and returns its summary.
// The pass is successful only if no batch produced a transport failure, an
// unresolved conflict or an explicit item error.
func (o *Orchestrator) RunSyncPass(ctx context.Context) (*models.SyncResult, error) {
	result := &models.SyncResult{Success: true}

	if err := o.transport.CheckConnectivity(ctx); err != nil {
		o.log.Warn().Err(err).Msg("remote unreachable, aborting pass")
		result.Success = false
		result.Errors = append(result.Errors, models.SyncError{
			Message:   fmt.Sprintf("connectivity check failed: %v", err),
			Timestamp: time.Now().UTC(),
		})
		return result, nil
	}

	entries, err := o.queue.DrainOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("drain queue: %w", err)
	}
	if len(entries) == 0 {
		o.log.Debug().Msg("queue empty, nothing to sync")
		return result, nil
	}

	// Batches run sequentially so in-progress marking stays unambiguous.
	for _, batch := range partition(entries, o.cfg.BatchSize) {
		if err := o.processBatch(ctx, batch, result); err != nil {
			return nil, err
		}
	}

	o.bus.PublishJSON(events.EventSyncPassFinished, events.PassEventPayload{
		Success:     result.Success,
		SyncedCount: result.SyncedCount,
		FailedCount: result.FailedCount,
	})
	o.log.Info().
		Bool("success", result.Success).
		Int("synced", result.SyncedCount).
		Int("failed", result.FailedCount).
		Msg("sync pass finished")

	return result, nil
}

func (o *Orchestrator) processBatch(ctx context.Context, batch []models.QueueEntry, result *models.SyncResult) error {
	runs := groupByTask(batch)

	taskIDs := make([]string, 0, len(runs))
	for _, run := range runs {
		taskIDs = append(taskIDs, run.taskID)
	}
	if err := o.db.MarkTasksInProgress(ctx, taskIDs); err != nil {
		return fmt.Errorf("mark tasks in progress: %w", err)
	}

	response, err := o.transport.Send(ctx, batch)
	if err != nil {
		// A batch-level failure is not fatal to the pass: every item goes
		// through retry accounting and the next batch still runs.
		o.log.Warn().Err(err).Int("items", len(batch)).Msg("batch transport failed")
		result.Success = false
		for i := range batch {
			o.handleFailure(ctx, &batch[i], err, result)
		}
		return nil
	}

	outcomes := make(map[string]models.ItemResult, len(response.ProcessedItems))
	for _, item := range response.ProcessedItems {
		outcomes[item.ClientID] = item
	}

	for _, run := range runs {
		outcome, ok := outcomes[run.taskID]
		if !ok {
			o.recordItemError(ctx, run, "remote returned no outcome for item", result)
			continue
		}

		switch outcome.Status {
		case models.ItemStatusSuccess:
			if err := o.applySuccess(ctx, run, outcome.ServerID); err != nil {
				return err
			}
			result.SyncedCount += len(run.entries)
		case models.ItemStatusConflict:
			o.applyConflict(ctx, run, outcome, result)
		default:
			message := "remote reported item failure"
			if outcome.Error != nil && *outcome.Error != "" {
				message = *outcome.Error
			}
			o.recordItemError(ctx, run, message, result)
		}
	}

	return nil
}

func (o *Orchestrator) applySuccess(ctx context.Context, run taskRun, serverID *string) error {
	now := time.Now().UTC()
	if err := o.db.MarkTaskSynced(ctx, run.taskID, serverID, now); err != nil {
		return err
	}
	for _, entry := range run.entries {
		if err := o.queue.Remove(ctx, entry.ID); err != nil {
			return err
		}
	}

	o.bus.PublishJSON(events.EventTaskSynced, events.TaskEventPayload{
		TaskID: run.taskID,
		Status: models.SyncStatusSynced,
	})
	return nil
}

func (o *Orchestrator) applyConflict(ctx context.Context, run taskRun, outcome models.ItemResult, result *models.SyncResult) {
	local, err := o.db.GetTask(ctx, run.taskID)
	if errors.Is(err, database.ErrTaskNotFound) {
		// Not retryable: the local side of the conflict is gone.
		o.log.Error().Str("task_id", run.taskID).Msg("conflict reported for missing local record")
		o.recordItemError(ctx, run, "conflict with missing local record", result)
		return
	}
	if err != nil {
		o.recordItemError(ctx, run, fmt.Sprintf("load local record: %v", err), result)
		return
	}
	if outcome.ResolvedData == nil {
		o.recordItemError(ctx, run, "conflict outcome without resolved data", result)
		return
	}

	winner, localWon := Resolve(*local, *outcome.ResolvedData)
	winner.ID = run.taskID
	if winner.RemoteID == nil {
		winner.RemoteID = outcome.ServerID
	}

	now := time.Now().UTC()
	if err := o.db.ApplyResolvedTask(ctx, &winner, now); err != nil {
		o.recordItemError(ctx, run, fmt.Sprintf("persist conflict winner: %v", err), result)
		return
	}
	for _, entry := range run.entries {
		if err := o.queue.Remove(ctx, entry.ID); err != nil {
			o.log.Error().Err(err).Str("entry_id", entry.ID).Msg("remove entry after conflict resolution")
		}
	}
	result.SyncedCount += len(run.entries)

	o.log.Info().Str("task_id", run.taskID).Bool("local_won", localWon).Msg("conflict resolved")
	o.bus.PublishJSON(events.EventTaskSynced, events.TaskEventPayload{
		TaskID: run.taskID,
		Status: models.SyncStatusSynced,
	})
}

// recordItemError marks the task as errored without touching retry counters:
// only transport-level failures count against the retry budget.
func (o *Orchestrator) recordItemError(ctx context.Context, run taskRun, message string, result *models.SyncResult) {
	if err := o.db.UpdateTaskSyncStatus(ctx, run.taskID, models.SyncStatusError); err != nil {
		o.log.Error().Err(err).Str("task_id", run.taskID).Msg("mark task error")
	}

	result.Success = false
	result.FailedCount += len(run.entries)
	for _, entry := range run.entries {
		result.Errors = append(result.Errors, models.SyncError{
			TaskID:    run.taskID,
			Operation: entry.Operation,
			Message:   message,
			Timestamp: time.Now().UTC(),
		})
	}

	o.bus.PublishJSON(events.EventTaskSyncError, events.TaskEventPayload{
		TaskID:  run.taskID,
		Status:  models.SyncStatusError,
		Message: message,
	})
}

// handleFailure is the retry / dead-letter path for transport-level failures.
func (o *Orchestrator) handleFailure(ctx context.Context, entry *models.QueueEntry, cause error, result *models.SyncResult) {
	now := time.Now().UTC()
	result.FailedCount++
	result.Errors = append(result.Errors, models.SyncError{
		TaskID:    entry.TaskID,
		Operation: entry.Operation,
		Message:   cause.Error(),
		Timestamp: now,
	})

	newCount, err := o.queue.RecordFailure(ctx, entry.ID, cause.Error())
	if err != nil {
		o.log.Error().Err(err).Str("entry_id", entry.ID).Msg("record failure")
		return
	}

	if newCount < o.cfg.RetryBudget {
		if err := o.db.UpdateTaskSyncStatus(ctx, entry.TaskID, models.SyncStatusError); err != nil {
			o.log.Error().Err(err).Str("task_id", entry.TaskID).Msg("mark task error")
		}
		o.bus.PublishJSON(events.EventTaskSyncError, events.TaskEventPayload{
			TaskID:    entry.TaskID,
			Operation: entry.Operation,
			Status:    models.SyncStatusError,
			Message:   cause.Error(),
		})
		return
	}

	// Budget exhausted: archive verbatim and drop from the queue.
	if err := o.db.MoveEntryToDeadLetter(ctx, entry, cause.Error(), now); err != nil {
		o.log.Error().Err(err).Str("entry_id", entry.ID).Msg("move entry to dead letter")
		return
	}
	if err := o.db.UpdateTaskSyncStatus(ctx, entry.TaskID, models.SyncStatusFailed); err != nil {
		o.log.Error().Err(err).Str("task_id", entry.TaskID).Msg("mark task failed")
	}

	o.log.Warn().
		Str("entry_id", entry.ID).
		Str("task_id", entry.TaskID).
		Int("retry_count", newCount).
		Msg("retry budget exhausted, entry dead-lettered")

	dl := models.DeadLetter{
		ID:        entry.ID,
		TaskID:    entry.TaskID,
		Operation: entry.Operation,
		Payload:   entry.Payload,
		LastError: cause.Error(),
		FailedAt:  now,
	}
	if o.mirror != nil {
		if err := o.mirror.MirrorDeadLetter(ctx, dl); err != nil {
			o.log.Warn().Err(err).Str("entry_id", entry.ID).Msg("dead letter mirror push failed")
		}
	}
	o.bus.PublishJSON(events.EventTaskDeadLettered, events.TaskEventPayload{
		TaskID:    entry.TaskID,
		Operation: entry.Operation,
		Status:    models.SyncStatusFailed,
		Message:   cause.Error(),
	})
}

type taskRun struct {
	taskID  string
	entries []models.QueueEntry
}

// groupByTask collapses a canonically ordered batch into contiguous per-task
// runs, preserving order. Remote outcomes are keyed by task identity, so one
// outcome settles every entry in the run.
func groupByTask(batch []models.QueueEntry) []taskRun {
	var runs []taskRun
	for _, entry := range batch {
		if len(runs) > 0 && runs[len(runs)-1].taskID == entry.TaskID {
			runs[len(runs)-1].entries = append(runs[len(runs)-1].entries, entry)
			continue
		}
		runs = append(runs, taskRun{taskID: entry.TaskID, entries: []models.QueueEntry{entry}})
	}
	return runs
}

func partition(entries []models.QueueEntry, size int) [][]models.QueueEntry {
	var batches [][]models.QueueEntry
	for start := 0; start < len(entries); start += size {
		end := start + size
		if end > len(entries) {
			end = len(entries)
		}
		batches = append(batches, entries[start:end])
	}
	return batches
}
