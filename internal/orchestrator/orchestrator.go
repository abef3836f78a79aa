// Package orchestrator owns the task lifecycle: creation plus submission to
// the external compute backend, status reconciliation against the backend's
// authoritative state, and user-initiated stops. Local task records are a
// cache of the backend's state for everything past PENDING.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/synalix-ai/admin-backend/internal/audit"
	"github.com/synalix-ai/admin-backend/internal/backend"
	"github.com/synalix-ai/admin-backend/internal/models"
	"github.com/synalix-ai/admin-backend/internal/store"
)

// ComputeBackend is the contract the orchestrator needs from the external
// compute backend adapter. *backend.Client satisfies it.
type ComputeBackend interface {
	SubmitJob(ctx context.Context, jobKind string, config map[string]interface{}) (string, error)
	QueryTasks(ctx context.Context, externalTaskID string) (map[string]backend.TaskStatusInfo, error)
	CancelTask(ctx context.Context, externalTaskID string) error
	ChartURL(externalTaskID string) string
}

// LogFetcher retrieves a task's execution logs from object storage, either as
// the log contents or as a presigned download URL. *storage.MinioClient
// satisfies it.
type LogFetcher interface {
	TaskLogs(ctx context.Context, taskID string) string
	PresignedLogURL(ctx context.Context, taskID string) (string, error)
}

// Orchestrator coordinates task records, the compute backend and the audit
// pipeline. All its operations run synchronously within the calling request.
type Orchestrator struct {
	tasks   store.TaskStore
	refs    store.ReferenceStore
	perms   store.GpuPermissionStore
	compute ComputeBackend
	audit   audit.Sink
	logs    LogFetcher
	logger  *zap.Logger
}

// New creates an Orchestrator. logs may be nil when object storage is
// unavailable; TaskLogs then reports logs as missing.
func New(tasks store.TaskStore, refs store.ReferenceStore, perms store.GpuPermissionStore,
	compute ComputeBackend, auditSink audit.Sink, logs LogFetcher, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		tasks:   tasks,
		refs:    refs,
		perms:   perms,
		compute: compute,
		audit:   auditSink,
		logs:    logs,
		logger:  logger,
	}
}

// CreateTaskParams carries everything needed to create and submit a task.
// DatasetID may be uuid.Nil for job types that take no dataset.
type CreateTaskParams struct {
	Name      string
	Type      models.TaskType
	ModelID   uuid.UUID
	DatasetID uuid.UUID
	GPUIDs    []int
	Config    map[string]interface{}
	Requester uuid.UUID
}

// CreateTask validates the request, persists a PENDING record, submits the job
// to the compute backend and promotes the record to RUNNING with the
// backend-assigned id. Creation and submission are one unit: if submission
// fails the PENDING record is removed again and no task survives.
func (o *Orchestrator) CreateTask(ctx context.Context, params CreateTaskParams) (*models.Task, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("%w: task name is required", models.ErrInvalidInput)
	}
	if !params.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown task type %q", models.ErrInvalidInput, params.Type)
	}

	exists, err := o.refs.ModelExists(ctx, params.ModelID)
	if err != nil {
		return nil, fmt.Errorf("validating model reference: %w", err)
	}
	if !exists {
		return nil, models.ErrModelNotFound
	}

	datasetID := params.DatasetID
	if datasetID != models.NoDatasetID {
		exists, err := o.refs.DatasetExists(ctx, datasetID)
		if err != nil {
			return nil, fmt.Errorf("validating dataset reference: %w", err)
		}
		if !exists {
			return nil, models.ErrDatasetNotFound
		}
	}

	if len(params.GPUIDs) > 0 {
		if err := o.checkGPUPermission(ctx, params.Requester, params.GPUIDs); err != nil {
			return nil, err
		}
	}

	// Copy the config before merging the reserved key so the caller's map is
	// never mutated.
	config := make(map[string]interface{}, len(params.Config)+1)
	for k, v := range params.Config {
		config[k] = v
	}
	if len(params.GPUIDs) > 0 {
		config[models.GPUIDsConfigKey] = params.GPUIDs
	}

	task := models.NewTask(params.Name, params.Type, params.ModelID, datasetID, params.Requester, config)
	if err := o.tasks.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("persisting task: %w", err)
	}

	externalTaskID, err := o.compute.SubmitJob(ctx, task.Type.JobKind(), config)
	if err != nil {
		// Compensate the PENDING insert: a task that failed to submit must
		// not survive in any state.
		if delErr := o.tasks.DeleteTask(ctx, task.ID); delErr != nil {
			o.logger.Error("Failed to remove task after failed submission",
				zap.String("task_id", task.ID.String()),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrSubmissionFailed, err)
	}

	if err := o.tasks.SetSubmitted(ctx, task.ID, externalTaskID, config); err != nil {
		// Same compensation as a failed submission: the job is running at the
		// backend, but a PENDING record with no external id must not survive.
		if delErr := o.tasks.DeleteTask(ctx, task.ID); delErr != nil {
			o.logger.Error("Failed to remove task after failed submission record",
				zap.String("task_id", task.ID.String()),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("recording submission: %w", err)
	}
	task.ExternalTaskID = externalTaskID
	task.Status = models.TaskStatusRunning
	task.UpdatedAt = time.Now().UTC()

	o.audit.Record(ctx, models.NewAuditEvent(models.AuditTaskCreate, params.Requester, task.ID.String(),
		map[string]interface{}{
			"name":           task.Name,
			"type":           string(task.Type),
			"modelId":        task.ModelID.String(),
			"datasetId":      task.DatasetID.String(),
			"externalTaskId": task.ExternalTaskID,
			"status":         string(task.Status),
		}))

	o.logger.Info("Task created and submitted",
		zap.String("task_id", task.ID.String()),
		zap.String("external_task_id", task.ExternalTaskID),
		zap.String("type", string(task.Type)),
	)
	return task, nil
}

func (o *Orchestrator) checkGPUPermission(ctx context.Context, userID uuid.UUID, requested []int) error {
	allowed, err := o.perms.AllowedGPUIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolving gpu permissions: %w", err)
	}
	allowedSet := make(map[int]struct{}, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = struct{}{}
	}
	for _, id := range requested {
		if _, ok := allowedSet[id]; !ok {
			return fmt.Errorf("%w: gpu %d is not permitted for this user", models.ErrPermissionDenied, id)
		}
	}
	return nil
}

// ListTasks returns tasks matching the filter, refreshing each record against
// the compute backend first. Refresh failures are swallowed per task: the
// caller always receives the best-known list.
func (o *Orchestrator) ListTasks(ctx context.Context, filter store.TaskFilter) ([]*models.Task, error) {
	tasks, err := o.tasks.ListTasks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	for i, task := range tasks {
		tasks[i] = o.refreshStatus(ctx, task)
	}
	return tasks, nil
}

// GetTaskByID returns a single task without refreshing it.
func (o *Orchestrator) GetTaskByID(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	return o.tasks.GetTask(ctx, taskID)
}

// refreshStatus polls the compute backend for the task's current status and
// reconciles it into the local record. The backend is authoritative: its
// reported status overwrites the local one even out of a terminal state. The
// queried id being absent from the response means no new information.
func (o *Orchestrator) refreshStatus(ctx context.Context, task *models.Task) *models.Task {
	if task.ExternalTaskID == "" {
		return task
	}

	statuses, err := o.compute.QueryTasks(ctx, task.ExternalTaskID)
	if err != nil {
		o.logger.Warn("Status refresh failed, keeping last known status",
			zap.String("task_id", task.ID.String()),
			zap.String("external_task_id", task.ExternalTaskID),
			zap.Error(err),
		)
		return task
	}

	info, ok := statuses[task.ExternalTaskID]
	if !ok {
		return task
	}

	newStatus := models.MapBackendStatus(info.Status)
	if newStatus == task.Status {
		return task
	}

	if err := o.tasks.UpdateStatus(ctx, task.ID, newStatus); err != nil {
		o.logger.Warn("Failed to persist refreshed status",
			zap.String("task_id", task.ID.String()),
			zap.String("new_status", string(newStatus)),
			zap.Error(err),
		)
		return task
	}

	o.logger.Debug("Task status refreshed",
		zap.String("task_id", task.ID.String()),
		zap.String("old_status", string(task.Status)),
		zap.String("new_status", string(newStatus)),
	)
	task.Status = newStatus
	task.UpdatedAt = time.Now().UTC()
	return task
}

// StopTask cancels a task at the compute backend and marks the local record
// STOPPED. Stopping a task already in a terminal state fails without touching
// the backend; a failed cancellation leaves the record unchanged.
func (o *Orchestrator) StopTask(ctx context.Context, taskID, requester uuid.UUID) (*models.Task, error) {
	task, err := o.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: task is %s", models.ErrTaskCannotStop, task.Status)
	}

	previousStatus := task.Status
	if task.ExternalTaskID != "" {
		if err := o.compute.CancelTask(ctx, task.ExternalTaskID); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrCancellationFailed, err)
		}
	}

	if err := o.tasks.UpdateStatus(ctx, taskID, models.TaskStatusStopped); err != nil {
		return nil, fmt.Errorf("persisting stop: %w", err)
	}
	task.Status = models.TaskStatusStopped
	task.UpdatedAt = time.Now().UTC()

	o.audit.Record(ctx, models.NewAuditEvent(models.AuditTaskStop, requester, taskID.String(),
		map[string]interface{}{
			"previousStatus": string(previousStatus),
			"externalTaskId": task.ExternalTaskID,
		}))

	o.logger.Info("Task stopped",
		zap.String("task_id", taskID.String()),
		zap.String("external_task_id", task.ExternalTaskID),
		zap.String("previous_status", string(previousStatus)),
	)
	return task, nil
}

// MetricPoint is a single metrics sample for a task.
type MetricPoint struct {
	TaskID    uuid.UUID `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
	Epoch     int       `json:"epoch"`
	Loss      float64   `json:"loss"`
	Accuracy  float64   `json:"accuracy"`
}

// TaskMetrics returns a single synthetic metrics point derived from the
// current status. Real training metrics are not wired yet; the shape matches
// what the metrics pipeline will eventually deliver.
func (o *Orchestrator) TaskMetrics(ctx context.Context, taskID uuid.UUID) ([]MetricPoint, error) {
	task, err := o.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	point := MetricPoint{
		TaskID:    taskID,
		Timestamp: time.Now().UTC(),
	}
	if task.Status == models.TaskStatusRunning {
		point.Epoch = 1
		point.Loss = 0.5
		point.Accuracy = 0.8
	}
	return []MetricPoint{point}, nil
}

// TaskLogs fetches the task's execution logs from object storage.
func (o *Orchestrator) TaskLogs(ctx context.Context, taskID uuid.UUID) (string, error) {
	if _, err := o.tasks.GetTask(ctx, taskID); err != nil {
		return "", err
	}
	if o.logs == nil {
		return "No logs available for task " + taskID.String(), nil
	}
	return o.logs.TaskLogs(ctx, taskID.String()), nil
}

// TaskLogURL builds a presigned download URL for the task's log object, so
// clients can pull large logs straight from object storage.
func (o *Orchestrator) TaskLogURL(ctx context.Context, taskID uuid.UUID) (string, error) {
	if _, err := o.tasks.GetTask(ctx, taskID); err != nil {
		return "", err
	}
	if o.logs == nil {
		return "", fmt.Errorf("log storage is not configured")
	}
	return o.logs.PresignedLogURL(ctx, taskID.String())
}

// ChartInfo points clients at the backend-rendered training chart.
type ChartInfo struct {
	TaskID   uuid.UUID `json:"task_id"`
	ChartURL string    `json:"chart_url"`
}

// TaskChart builds the display URL for a task's training chart. The URL is
// parameterized by the external task id and never fetched by this service.
func (o *Orchestrator) TaskChart(ctx context.Context, taskID uuid.UUID) (*ChartInfo, error) {
	task, err := o.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &ChartInfo{
		TaskID:   taskID,
		ChartURL: o.compute.ChartURL(task.ExternalTaskID),
	}, nil
}
