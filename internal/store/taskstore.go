package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/synalix-ai/admin-backend/internal/models"
)

// TaskFilter narrows a task listing. Nil fields match everything.
type TaskFilter struct {
	Status *models.TaskStatus
	Type   *models.TaskType
}

// TaskStore defines the interface for task persistence.
// This allows different storage backends to be used interchangeably.
type TaskStore interface {
	// Initialize sets up any necessary structures or connections
	Initialize(ctx context.Context) error

	// CreateTask stores a new task record
	CreateTask(ctx context.Context, task *models.Task) error

	// GetTask retrieves a task by id, returning models.ErrTaskNotFound if absent
	GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error)

	// ListTasks retrieves tasks matching the filter, newest first
	ListTasks(ctx context.Context, filter TaskFilter) ([]*models.Task, error)

	// UpdateStatus overwrites a task's status and bumps updated_at.
	// The write is unconditional; concurrent writers are last-write-wins.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) error

	// SetSubmitted records a successful backend submission: external task id,
	// RUNNING status, refreshed config, bumped updated_at.
	SetSubmitted(ctx context.Context, id uuid.UUID, externalTaskID string, config map[string]interface{}) error

	// DeleteTask removes a task record. There is no public delete operation;
	// this exists to compensate a PENDING insert when submission fails.
	DeleteTask(ctx context.Context, id uuid.UUID) error

	// Close cleans up any resources used by the store
	Close() error
}

// ReferenceStore checks that externally-owned entities a task points at exist.
// Ownership of models and datasets lives elsewhere in the platform.
type ReferenceStore interface {
	ModelExists(ctx context.Context, id uuid.UUID) (bool, error)
	DatasetExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// GpuPermissionStore resolves the set of GPU indices a user may request.
type GpuPermissionStore interface {
	AllowedGPUIDs(ctx context.Context, userID uuid.UUID) ([]int, error)
}
