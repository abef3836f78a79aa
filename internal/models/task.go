package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskType distinguishes training jobs from inference jobs. It is fixed at
// creation time.
type TaskType string

const (
	TaskTypeTraining  TaskType = "TRAINING"
	TaskTypeInference TaskType = "INFERENCE"
)

// JobKind returns the path segment the external compute backend expects for
// this task type ("train" or "infer").
func (t TaskType) JobKind() string {
	if t == TaskTypeInference {
		return "infer"
	}
	return "train"
}

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	return t == TaskTypeTraining || t == TaskTypeInference
}

// TaskStatus represents the local lifecycle state of a compute task. The local
// record only owns the PENDING state; everything past that mirrors the external
// backend's authoritative state.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
	TaskStatusStopped   TaskStatus = "STOPPED"
)

// IsTerminal reports whether no further user-initiated transition is expected
// from this status.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusStopped:
		return true
	}
	return false
}

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed, TaskStatusStopped:
		return true
	}
	return false
}

// MapBackendStatus translates the external backend's status vocabulary into the
// local state machine. It is total: unknown or empty input maps to PENDING.
func MapBackendStatus(backendStatus string) TaskStatus {
	switch strings.ToLower(backendStatus) {
	case "pending":
		return TaskStatusPending
	case "running", "in_progress":
		return TaskStatusRunning
	case "completed", "success":
		return TaskStatusCompleted
	case "failed", "error":
		return TaskStatusFailed
	case "stopped", "cancelled", "canceled":
		return TaskStatusStopped
	default:
		return TaskStatusPending
	}
}

// NoDatasetID is the sentinel dataset reference used for task types that do not
// consume a dataset.
var NoDatasetID = uuid.Nil

// GPUIDsConfigKey is the reserved key under which the requested GPU indices are
// merged into a task's config before submission.
const GPUIDsConfigKey = "gpuIds"

// Task is a compute job record. The external backend owns execution; this
// record caches its last known state.
type Task struct {
	ID             uuid.UUID              `json:"id"`
	Name           string                 `json:"name"`
	Type           TaskType               `json:"type"`
	Status         TaskStatus             `json:"status"`
	ModelID        uuid.UUID              `json:"model_id"`
	DatasetID      uuid.UUID              `json:"dataset_id"`
	Config         map[string]interface{} `json:"config,omitempty"`
	CreatedBy      uuid.UUID              `json:"created_by"`
	ExternalTaskID string                 `json:"external_task_id,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// NewTask constructs a PENDING task record with a fresh id and timestamps.
func NewTask(name string, taskType TaskType, modelID, datasetID, createdBy uuid.UUID, config map[string]interface{}) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        uuid.New(),
		Name:      name,
		Type:      taskType,
		Status:    TaskStatusPending,
		ModelID:   modelID,
		DatasetID: datasetID,
		Config:    config,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
