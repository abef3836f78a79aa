package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synalix-ai/admin-backend/internal/models"
)

func newStoredTask(t *testing.T, s *InMemoryTaskStore, name string, taskType models.TaskType, status models.TaskStatus) *models.Task {
	t.Helper()
	task := models.NewTask(name, taskType, uuid.New(), uuid.New(), uuid.New(), nil)
	require.NoError(t, s.CreateTask(context.Background(), task))
	if status != models.TaskStatusPending {
		require.NoError(t, s.UpdateStatus(context.Background(), task.ID, status))
	}
	return task
}

func TestInMemoryCreateAndGet(t *testing.T) {
	s := NewInMemoryTaskStore()
	task := newStoredTask(t, s, "a", models.TaskTypeTraining, models.TaskStatusPending)

	got, err := s.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, task.Name, got.Name)

	// The store must hand out copies, not aliases.
	got.Name = "mutated"
	again, err := s.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Name)
}

func TestInMemoryGetUnknown(t *testing.T) {
	s := NewInMemoryTaskStore()
	_, err := s.GetTask(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrTaskNotFound)
}

func TestInMemoryListFilters(t *testing.T) {
	s := NewInMemoryTaskStore()
	newStoredTask(t, s, "t1", models.TaskTypeTraining, models.TaskStatusRunning)
	newStoredTask(t, s, "t2", models.TaskTypeTraining, models.TaskStatusCompleted)
	newStoredTask(t, s, "i1", models.TaskTypeInference, models.TaskStatusRunning)

	all, err := s.ListTasks(context.Background(), TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	running := models.TaskStatusRunning
	byStatus, err := s.ListTasks(context.Background(), TaskFilter{Status: &running})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)

	inference := models.TaskTypeInference
	byType, err := s.ListTasks(context.Background(), TaskFilter{Type: &inference})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "i1", byType[0].Name)

	both, err := s.ListTasks(context.Background(), TaskFilter{Status: &running, Type: &inference})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "i1", both[0].Name)
}

func TestInMemoryListNewestFirst(t *testing.T) {
	s := NewInMemoryTaskStore()

	older := models.NewTask("older", models.TaskTypeTraining, uuid.New(), uuid.New(), uuid.New(), nil)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.CreateTask(context.Background(), older))

	newer := models.NewTask("newer", models.TaskTypeTraining, uuid.New(), uuid.New(), uuid.New(), nil)
	require.NoError(t, s.CreateTask(context.Background(), newer))

	tasks, err := s.ListTasks(context.Background(), TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "newer", tasks[0].Name)
	assert.Equal(t, "older", tasks[1].Name)
}

func TestInMemoryUpdateStatus(t *testing.T) {
	s := NewInMemoryTaskStore()
	task := newStoredTask(t, s, "a", models.TaskTypeTraining, models.TaskStatusPending)

	require.NoError(t, s.UpdateStatus(context.Background(), task.ID, models.TaskStatusFailed))
	got, err := s.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	assert.True(t, got.UpdatedAt.After(task.UpdatedAt) || got.UpdatedAt.Equal(task.UpdatedAt))

	assert.ErrorIs(t, s.UpdateStatus(context.Background(), uuid.New(), models.TaskStatusFailed), models.ErrTaskNotFound)
}

func TestInMemorySetSubmitted(t *testing.T) {
	s := NewInMemoryTaskStore()
	task := newStoredTask(t, s, "a", models.TaskTypeTraining, models.TaskStatusPending)

	config := map[string]interface{}{"gpuIds": []int{0}}
	require.NoError(t, s.SetSubmitted(context.Background(), task.ID, "ext-9", config))

	got, err := s.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "ext-9", got.ExternalTaskID)
	assert.Equal(t, models.TaskStatusRunning, got.Status)
	assert.Equal(t, config, got.Config)

	assert.ErrorIs(t, s.SetSubmitted(context.Background(), uuid.New(), "ext-9", nil), models.ErrTaskNotFound)
}

func TestInMemoryDeleteTask(t *testing.T) {
	s := NewInMemoryTaskStore()
	task := newStoredTask(t, s, "a", models.TaskTypeTraining, models.TaskStatusPending)

	require.NoError(t, s.DeleteTask(context.Background(), task.ID))
	_, err := s.GetTask(context.Background(), task.ID)
	assert.ErrorIs(t, err, models.ErrTaskNotFound)

	// Deleting an absent task is not an error; deletion is compensation.
	assert.NoError(t, s.DeleteTask(context.Background(), uuid.New()))
}
