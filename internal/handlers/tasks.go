package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/synalix-ai/admin-backend/internal/auth"
	"github.com/synalix-ai/admin-backend/internal/models"
	"github.com/synalix-ai/admin-backend/internal/orchestrator"
	"github.com/synalix-ai/admin-backend/internal/store"
)

// TaskService is the slice of the orchestrator the HTTP layer needs.
type TaskService interface {
	CreateTask(ctx context.Context, params orchestrator.CreateTaskParams) (*models.Task, error)
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]*models.Task, error)
	GetTaskByID(ctx context.Context, taskID uuid.UUID) (*models.Task, error)
	StopTask(ctx context.Context, taskID, requester uuid.UUID) (*models.Task, error)
	TaskMetrics(ctx context.Context, taskID uuid.UUID) ([]orchestrator.MetricPoint, error)
	TaskLogs(ctx context.Context, taskID uuid.UUID) (string, error)
	TaskLogURL(ctx context.Context, taskID uuid.UUID) (string, error)
	TaskChart(ctx context.Context, taskID uuid.UUID) (*orchestrator.ChartInfo, error)
}

// TaskHandler exposes task lifecycle operations over HTTP.
type TaskHandler struct {
	service TaskService
	logger  *zap.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(service TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{service: service, logger: logger}
}

// Routes returns the router for /tasks.
func (h *TaskHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.CreateTask)
	r.Get("/", h.ListTasks)
	r.Get("/{id}", h.GetTask)
	r.Post("/{id}/stop", h.StopTask)
	r.Get("/{id}/metrics", h.GetTaskMetrics)
	r.Get("/{id}/logs", h.GetTaskLogs)
	r.Get("/{id}/logs/url", h.GetTaskLogURL)
	r.Get("/{id}/chart", h.GetTaskChart)
	return r
}

// CreateTaskRequest is the request body for POST /tasks.
type CreateTaskRequest struct {
	Name      string                 `json:"name"`
	Type      models.TaskType        `json:"type"`
	ModelID   uuid.UUID              `json:"model_id"`
	DatasetID *uuid.UUID             `json:"dataset_id,omitempty"`
	GPUIDs    []int                  `json:"gpu_ids,omitempty"`
	Config    map[string]interface{} `json:"config,omitempty"`
}

// CreateTask handles POST /tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode create task request", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	requester, ok := h.requesterID(w, r)
	if !ok {
		return
	}

	datasetID := models.NoDatasetID
	if req.DatasetID != nil {
		datasetID = *req.DatasetID
	}

	task, err := h.service.CreateTask(r.Context(), orchestrator.CreateTaskParams{
		Name:      req.Name,
		Type:      req.Type,
		ModelID:   req.ModelID,
		DatasetID: datasetID,
		GPUIDs:    req.GPUIDs,
		Config:    req.Config,
		Requester: requester,
	})
	if err != nil {
		h.respondTaskError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, task)
}

// ListTasks handles GET /tasks?status=&type=.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	var filter store.TaskFilter

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.TaskStatus(raw)
		if !status.Valid() {
			h.respondError(w, http.StatusBadRequest, "Unknown status filter")
			return
		}
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		taskType := models.TaskType(raw)
		if !taskType.Valid() {
			h.respondError(w, http.StatusBadRequest, "Unknown type filter")
			return
		}
		filter.Type = &taskType
	}

	tasks, err := h.service.ListTasks(r.Context(), filter)
	if err != nil {
		h.respondTaskError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	h.respondJSON(w, http.StatusOK, tasks)
}

// GetTask handles GET /tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskID(w, r)
	if !ok {
		return
	}
	task, err := h.service.GetTaskByID(r.Context(), taskID)
	if err != nil {
		h.respondTaskError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, task)
}

// StopTask handles POST /tasks/{id}/stop.
func (h *TaskHandler) StopTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskID(w, r)
	if !ok {
		return
	}
	requester, ok := h.requesterID(w, r)
	if !ok {
		return
	}
	task, err := h.service.StopTask(r.Context(), taskID, requester)
	if err != nil {
		h.respondTaskError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, task)
}

// GetTaskMetrics handles GET /tasks/{id}/metrics.
func (h *TaskHandler) GetTaskMetrics(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskID(w, r)
	if !ok {
		return
	}
	metrics, err := h.service.TaskMetrics(r.Context(), taskID)
	if err != nil {
		h.respondTaskError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, metrics)
}

// TaskLogsResponse is the response body for GET /tasks/{id}/logs.
type TaskLogsResponse struct {
	TaskID uuid.UUID `json:"task_id"`
	Logs   string    `json:"logs"`
}

// GetTaskLogs handles GET /tasks/{id}/logs.
func (h *TaskHandler) GetTaskLogs(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskID(w, r)
	if !ok {
		return
	}
	logs, err := h.service.TaskLogs(r.Context(), taskID)
	if err != nil {
		h.respondTaskError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, TaskLogsResponse{TaskID: taskID, Logs: logs})
}

// TaskLogURLResponse is the response body for GET /tasks/{id}/logs/url.
type TaskLogURLResponse struct {
	TaskID      uuid.UUID `json:"task_id"`
	DownloadURL string    `json:"download_url"`
}

// GetTaskLogURL handles GET /tasks/{id}/logs/url. It hands out a presigned
// download URL so clients fetch the log bytes from object storage directly.
func (h *TaskHandler) GetTaskLogURL(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskID(w, r)
	if !ok {
		return
	}
	downloadURL, err := h.service.TaskLogURL(r.Context(), taskID)
	if err != nil {
		h.respondTaskError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, TaskLogURLResponse{TaskID: taskID, DownloadURL: downloadURL})
}

// GetTaskChart handles GET /tasks/{id}/chart.
func (h *TaskHandler) GetTaskChart(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskID(w, r)
	if !ok {
		return
	}
	chart, err := h.service.TaskChart(r.Context(), taskID)
	if err != nil {
		h.respondTaskError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, chart)
}

func (h *TaskHandler) taskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid task id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *TaskHandler) requesterID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims, ok := r.Context().Value(auth.ContextKeyClaims).(*auth.Claims)
	if !ok || claims == nil {
		h.logger.Error("Claims not found in request context")
		h.respondError(w, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		h.logger.Error("Malformed user id in token claims", zap.String("user_id", claims.UserID))
		h.respondError(w, http.StatusUnauthorized, "Invalid token subject")
		return uuid.Nil, false
	}
	return userID, true
}

// respondTaskError maps domain errors to HTTP statuses.
func (h *TaskHandler) respondTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrTaskNotFound),
		errors.Is(err, models.ErrModelNotFound),
		errors.Is(err, models.ErrDatasetNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrTaskCannotStop):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrPermissionDenied):
		h.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrInvalidInput):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrSubmissionFailed),
		errors.Is(err, models.ErrCancellationFailed):
		h.logger.Error("Compute backend operation failed", zap.Error(err))
		h.respondError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("Unhandled task operation error", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *TaskHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
