package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMapBackendStatus(t *testing.T) {
	cases := []struct {
		backend string
		want    TaskStatus
	}{
		{"pending", TaskStatusPending},
		{"running", TaskStatusRunning},
		{"in_progress", TaskStatusRunning},
		{"completed", TaskStatusCompleted},
		{"success", TaskStatusCompleted},
		{"failed", TaskStatusFailed},
		{"error", TaskStatusFailed},
		{"stopped", TaskStatusStopped},
		{"cancelled", TaskStatusStopped},
		{"canceled", TaskStatusStopped},
		// Mapping is case-insensitive.
		{"RUNNING", TaskStatusRunning},
		{"Completed", TaskStatusCompleted},
		{"CaNcElLeD", TaskStatusStopped},
		// Unknown and empty inputs fall back to PENDING.
		{"queued", TaskStatusPending},
		{"initializing", TaskStatusPending},
		{"", TaskStatusPending},
	}

	for _, tc := range cases {
		t.Run(tc.backend, func(t *testing.T) {
			assert.Equal(t, tc.want, MapBackendStatus(tc.backend))
		})
	}
}

func TestTaskStatusIsTerminal(t *testing.T) {
	assert.False(t, TaskStatusPending.IsTerminal())
	assert.False(t, TaskStatusRunning.IsTerminal())
	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())
	assert.True(t, TaskStatusStopped.IsTerminal())
}

func TestTaskTypeJobKind(t *testing.T) {
	assert.Equal(t, "train", TaskTypeTraining.JobKind())
	assert.Equal(t, "infer", TaskTypeInference.JobKind())
}

func TestTaskTypeValid(t *testing.T) {
	assert.True(t, TaskTypeTraining.Valid())
	assert.True(t, TaskTypeInference.Valid())
	assert.False(t, TaskType("EVALUATION").Valid())
	assert.False(t, TaskType("").Valid())
}

func TestNewTask(t *testing.T) {
	modelID := uuid.New()
	creator := uuid.New()

	task := NewTask("bert-eval", TaskTypeInference, modelID, NoDatasetID, creator, map[string]interface{}{"batch": 32})

	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Equal(t, modelID, task.ModelID)
	assert.Equal(t, NoDatasetID, task.DatasetID)
	assert.Equal(t, creator, task.CreatedBy)
	assert.Empty(t, task.ExternalTaskID)
	assert.False(t, task.CreatedAt.IsZero())
	assert.Equal(t, task.CreatedAt, task.UpdatedAt)
}
