package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"tasksync/internal/config"
	"tasksync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformBackup(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "source.db")
	logger := zerolog.Nop()
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.CreateTask(context.Background(), makeTask("task-1", "backed up")))

	storage := filepath.Join(t.TempDir(), "backups")
	svc := NewBackupService(dbPath, config.BackupConfig{
		Enabled:     true,
		StoragePath: storage,
	}, &logger)

	require.NoError(t, svc.PerformBackup())

	files, err := os.ReadDir(storage)
	require.NoError(t, err)
	require.Len(t, files, 1)

	// Snapshot is a valid database containing the copied row.
	restored, err := NewDB(filepath.Join(storage, files[0].Name()), &logger)
	require.NoError(t, err)
	defer restored.Close()

	task, err := restored.GetTask(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, "backed up", task.Title)
	assert.Equal(t, models.SyncStatusPending, task.SyncStatus)
}

func TestBackupService_DisabledIsNoop(t *testing.T) {
	logger := zerolog.Nop()
	svc := NewBackupService("ignored.db", config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Start(ctx) // returns immediately, writes nothing
}
