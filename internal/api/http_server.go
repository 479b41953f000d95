package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"tasksync/internal/config"
	"tasksync/internal/database"
	"tasksync/internal/export"
	"tasksync/internal/models"
	"tasksync/internal/repository"
	"tasksync/internal/service"
	syncengine "tasksync/internal/sync"

	"github.com/rs/zerolog"
)

// HTTPServer is the thin route layer over the sync engine: task CRUD, manual
// sync trigger, status and dead-letter inspection.
type HTTPServer struct {
	cfg          config.APIConfig
	tasks        *service.TaskService
	orchestrator *syncengine.Orchestrator
	transport    syncengine.Transport
	db           *database.DB
	state        *repository.SyncStateRepository
	exporter     *export.Exporter
	server       *http.Server
	log          zerolog.Logger

	// Serializes manual sync triggers: one pass at a time.
	syncMu sync.Mutex
}

func NewHTTPServer(
	cfg config.APIConfig,
	tasks *service.TaskService,
	orchestrator *syncengine.Orchestrator,
	transport syncengine.Transport,
	db *database.DB,
	state *repository.SyncStateRepository,
	exporter *export.Exporter,
	logger *zerolog.Logger,
) *HTTPServer {
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{
		cfg:          cfg,
		tasks:        tasks,
		orchestrator: orchestrator,
		transport:    transport,
		db:           db,
		state:        state,
		exporter:     exporter,
		log:          log,
	}

	auth := NewHTTPAuth(cfg)
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           loggingMiddleware(logger, auth.Wrap(srv.Routes())),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// Routes builds the handler without auth/logging wrappers, for tests.
func (s *HTTPServer) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/tasks", s.handleTasks)
	mux.HandleFunc("/api/v1/tasks/", s.handleTaskByID)
	mux.HandleFunc("/api/v1/sync/trigger", s.handleSyncTrigger)
	mux.HandleFunc("/api/v1/sync/status", s.handleSyncStatus)
	mux.HandleFunc("/api/v1/deadletters", s.handleDeadLetters)
	mux.HandleFunc("/api/v1/deadletters/export", s.handleDeadLetterExport)
	return mux
}

func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	remoteReachable := true
	if err := s.transport.CheckConnectivity(r.Context()); err != nil {
		remoteReachable = false
	}

	if err := s.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":           "unhealthy",
			"database":         false,
			"remote_reachable": remoteReachable,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"database":         true,
		"remote_reachable": remoteReachable,
	})
}

func (s *HTTPServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		includeDeleted := r.URL.Query().Get("include_deleted") == "true"
		tasks, err := s.tasks.ListTasks(r.Context(), includeDeleted)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list tasks")
			return
		}
		if tasks == nil {
			tasks = []models.Task{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})

	case http.MethodPost:
		var body struct {
			ID          string `json:"id"`
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		task, err := s.tasks.CreateTask(r.Context(), service.CreateTaskInput{
			ID:          body.ID,
			Title:       body.Title,
			Description: body.Description,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, task)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/tasks/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		task, err := s.tasks.GetTask(r.Context(), id)
		if errors.Is(err, service.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get task")
			return
		}
		writeJSON(w, http.StatusOK, task)

	case http.MethodPut:
		var body struct {
			Title       *string `json:"title"`
			Description *string `json:"description"`
			Completed   *bool   `json:"completed"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		task, err := s.tasks.UpdateTask(r.Context(), id, service.UpdateTaskInput{
			Title:       body.Title,
			Description: body.Description,
			Completed:   body.Completed,
		})
		if errors.Is(err, service.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, task)

	case http.MethodDelete:
		err := s.tasks.DeleteTask(r.Context(), id)
		if errors.Is(err, service.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to delete task")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !s.syncMu.TryLock() {
		writeError(w, http.StatusConflict, "a sync pass is already running")
		return
	}
	defer s.syncMu.Unlock()

	result, err := s.orchestrator.RunSyncPass(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("sync pass failed: %v", err))
		return
	}

	if err := s.state.SetLastResult(r.Context(), result); err != nil {
		s.log.Warn().Err(err).Msg("cache sync result")
	}

	status := http.StatusOK
	if !result.Success {
		// Partial or total failure still returns the full summary.
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}

func (s *HTTPServer) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	counts, err := s.db.CountTasksByStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count tasks")
		return
	}

	depth, err := s.db.CountQueueEntries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count queue entries")
		return
	}

	lastResult, err := s.state.GetLastResult(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("read cached sync result")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tasks_by_status": counts,
		"queue_depth":     depth,
		"last_result":     lastResult,
	})
}

func (s *HTTPServer) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	letters, err := s.db.ListDeadLetters(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}
	if letters == nil {
		letters = []models.DeadLetter{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"dead_letters": letters})
}

func (s *HTTPServer) handleDeadLetterExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path, err := s.exporter.DeadLetters(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("export failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": path})
}

func decodeBody(r *http.Request, dst any) error {
	decoder := newStrictDecoder(r)
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}
