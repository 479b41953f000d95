package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"tasksync/internal/config"
	"tasksync/internal/database"
	"tasksync/internal/export"
	"tasksync/internal/models"
	"tasksync/internal/repository"
	"tasksync/internal/service"
	syncengine "tasksync/internal/sync"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport answers success for every task unless overridden.
type fakeTransport struct {
	connErr error
	sendErr error
}

func (f *fakeTransport) Send(_ context.Context, batch []models.QueueEntry) (*models.BatchResponse, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	resp := &models.BatchResponse{}
	seen := map[string]bool{}
	for _, entry := range batch {
		if seen[entry.TaskID] {
			continue
		}
		seen[entry.TaskID] = true
		serverID := "srv-" + entry.TaskID
		resp.ProcessedItems = append(resp.ProcessedItems, models.ItemResult{
			ClientID: entry.TaskID,
			ServerID: &serverID,
			Status:   models.ItemStatusSuccess,
		})
	}
	return resp, nil
}

func (f *fakeTransport) CheckConnectivity(_ context.Context) error {
	return f.connErr
}

func newTestServer(t *testing.T, tr syncengine.Transport) (*HTTPServer, *database.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api_test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	queue := syncengine.NewQueue(db, &logger)
	orchestrator := syncengine.NewOrchestrator(db, queue, tr, config.SyncConfig{}, nil, nil, &logger)
	tasks := service.NewTaskService(db, queue, &logger)
	state := repository.NewSyncStateRepository(nil, 0)
	exporter := export.NewExporter(db, filepath.Join(t.TempDir(), "exports"), &logger)

	srv := NewHTTPServer(config.APIConfig{Port: 0}, tasks, orchestrator, tr, db, state, exporter, &logger)
	return srv, db
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransport{})
	handler := srv.Routes()

	rec := doJSON(t, handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["database"])
	assert.Equal(t, true, body["remote_reachable"])
}

func TestHealth_RemoteDown(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransport{connErr: syncengine.ErrRemoteUnreachable})
	handler := srv.Routes()

	rec := doJSON(t, handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["remote_reachable"])
}

func TestTaskCRUDFlow(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransport{})
	handler := srv.Routes()

	// Create.
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/tasks", map[string]string{
		"title":       "buy milk",
		"description": "2 liters",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, models.SyncStatusPending, created.SyncStatus)

	// Read.
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Update.
	rec = doJSON(t, handler, http.MethodPut, "/api/v1/tasks/"+created.ID, map[string]any{
		"title":     "buy oat milk",
		"completed": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "buy oat milk", updated.Title)
	assert.True(t, updated.Completed)

	// List.
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listBody struct {
		Tasks []models.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listBody))
	assert.Len(t, listBody.Tasks, 1)

	// Delete.
	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTask_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransport{})
	handler := srv.Routes()

	// Missing title.
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/tasks", map[string]string{"description": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown field.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/tasks", map[string]string{"title": "a", "extra": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskByID_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransport{})
	handler := srv.Routes()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncTrigger_Success(t *testing.T) {
	srv, db := newTestServer(t, &fakeTransport{})
	handler := srv.Routes()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/tasks", map[string]string{"title": "sync me"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sync/trigger", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SyncedCount)

	task, err := db.GetTask(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, task.SyncStatus)
}

func TestSyncTrigger_RemoteDown(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransport{connErr: syncengine.ErrRemoteUnreachable})
	handler := srv.Routes()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sync/trigger", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var result models.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
}

func TestSyncStatus(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransport{})
	handler := srv.Routes()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/tasks", map[string]string{"title": "pending one"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sync/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		TasksByStatus map[string]int `json:"tasks_by_status"`
		QueueDepth    int            `json:"queue_depth"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.TasksByStatus[models.SyncStatusPending])
	assert.Equal(t, 1, body.QueueDepth)
}

func TestDeadLettersEndpoint(t *testing.T) {
	srv, db := newTestServer(t, &fakeTransport{})
	handler := srv.Routes()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/deadletters", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		DeadLetters []models.DeadLetter `json:"dead_letters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.DeadLetters)

	require.NoError(t, db.InsertDeadLetter(context.Background(), &models.DeadLetter{
		ID: "e-1", TaskID: "task-1", Operation: models.OpCreate, Payload: "{}", LastError: "boom",
	}))

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/deadletters", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.DeadLetters, 1)
	assert.Equal(t, "e-1", body.DeadLetters[0].ID)
}

func TestDeadLetterExportEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransport{})
	handler := srv.Routes()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/deadletters/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.FileExists(t, body["file"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTransport{})
	handler := srv.Routes()

	rec := doJSON(t, handler, http.MethodDelete, "/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sync/trigger", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
