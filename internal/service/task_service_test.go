package service

import (
	"context"
	"path/filepath"
	"testing"

	"tasksync/internal/database"
	"tasksync/internal/models"
	syncengine "tasksync/internal/sync"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*TaskService, *database.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "service_test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	queue := syncengine.NewQueue(db, &logger)
	return NewTaskService(db, queue, &logger), db
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCreateTask_EnqueuesCreateMutation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{Title: "  buy milk  ", Description: "2 liters"})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "buy milk", task.Title)
	assert.Equal(t, models.SyncStatusPending, task.SyncStatus)
	assert.True(t, task.CreatedAt.Equal(task.UpdatedAt))

	entries, err := db.ListQueueEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, task.ID, entries[0].TaskID)
	assert.Equal(t, models.OpCreate, entries[0].Operation)
	assert.Contains(t, entries[0].Payload, "buy milk")
}

func TestCreateTask_RequiresTitle(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateTask(context.Background(), CreateTaskInput{Title: "   "})
	assert.Error(t, err)
}

func TestCreateTask_KeepsCallerSuppliedID(t *testing.T) {
	svc, _ := newTestService(t)

	task, err := svc.CreateTask(context.Background(), CreateTaskInput{ID: "fixed-id", Title: "a"})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", task.ID)
}

func TestUpdateTask_ResetsToPendingAndEnqueues(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, CreateTaskInput{Title: "before"})
	require.NoError(t, err)

	// Simulate a completed sync so the reset is observable.
	require.NoError(t, db.UpdateTaskSyncStatus(ctx, created.ID, models.SyncStatusSynced))

	updated, err := svc.UpdateTask(ctx, created.ID, UpdateTaskInput{
		Title:     strPtr("after"),
		Completed: boolPtr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Title)
	assert.True(t, updated.Completed)
	assert.Equal(t, models.SyncStatusPending, updated.SyncStatus)
	assert.True(t, updated.UpdatedAt.After(created.CreatedAt) || updated.UpdatedAt.Equal(created.CreatedAt))

	entries, err := db.ListQueueEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.OpUpdate, entries[1].Operation)
}

func TestUpdateTask_PartialFieldsLeaveOthersUntouched(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, CreateTaskInput{Title: "title", Description: "desc"})
	require.NoError(t, err)

	updated, err := svc.UpdateTask(ctx, created.ID, UpdateTaskInput{Completed: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, "title", updated.Title)
	assert.Equal(t, "desc", updated.Description)
	assert.True(t, updated.Completed)
}

func TestUpdateTask_RejectsEmptyTitle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, CreateTaskInput{Title: "title"})
	require.NoError(t, err)

	_, err = svc.UpdateTask(ctx, created.ID, UpdateTaskInput{Title: strPtr("  ")})
	assert.Error(t, err)
}

func TestUpdateTask_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpdateTask(context.Background(), "missing", UpdateTaskInput{Title: strPtr("x")})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestDeleteTask_SoftDeletesAndEnqueues(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, CreateTaskInput{Title: "doomed"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTask(ctx, created.ID))

	// Hidden from the service but still present in the store.
	_, err = svc.GetTask(ctx, created.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	row, err := db.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, row.IsDeleted)
	assert.Equal(t, models.SyncStatusPending, row.SyncStatus)

	entries, err := db.ListQueueEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.OpDelete, entries[1].Operation)
}

func TestDeleteTask_TwiceReturnsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, CreateTaskInput{Title: "doomed"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTask(ctx, created.ID))
	assert.ErrorIs(t, svc.DeleteTask(ctx, created.ID), ErrTaskNotFound)
}

func TestUpdateTask_DeletedTaskNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, CreateTaskInput{Title: "doomed"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTask(ctx, created.ID))

	_, err = svc.UpdateTask(ctx, created.ID, UpdateTaskInput{Title: strPtr("x")})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestListTasks(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateTask(ctx, CreateTaskInput{Title: "first"})
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, CreateTaskInput{Title: "second"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTask(ctx, first.ID))

	visible, err := svc.ListTasks(ctx, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "second", visible[0].Title)

	all, err := svc.ListTasks(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
