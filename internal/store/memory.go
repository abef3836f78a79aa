package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synalix-ai/admin-backend/internal/models"
)

// InMemoryTaskStore is a simple in-memory store for tasks, safe for concurrent
// use. It backs tests and local development without a database.
type InMemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*models.Task
}

// NewInMemoryTaskStore creates a new in-memory task store.
func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks: make(map[uuid.UUID]*models.Task),
	}
}

// Initialize sets up the in-memory store. The map is created in the
// constructor, so there is nothing to do here.
func (s *InMemoryTaskStore) Initialize(ctx context.Context) error {
	return nil
}

// Close releases any resources. Nothing to close for the in-memory store.
func (s *InMemoryTaskStore) Close() error {
	return nil
}

// CreateTask adds a new task to the store.
func (s *InMemoryTaskStore) CreateTask(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

// GetTask retrieves a task by its id.
func (s *InMemoryTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil, models.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

// ListTasks returns tasks matching the filter, newest first.
func (s *InMemoryTaskStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Task
	for _, task := range s.tasks {
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && task.Type != *filter.Type {
			continue
		}
		copied := *task
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}

// UpdateStatus overwrites a task's status and bumps updated_at.
func (s *InMemoryTaskStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		return models.ErrTaskNotFound
	}
	task.Status = status
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// SetSubmitted records a successful backend submission.
func (s *InMemoryTaskStore) SetSubmitted(ctx context.Context, id uuid.UUID, externalTaskID string, config map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		return models.ErrTaskNotFound
	}
	task.ExternalTaskID = externalTaskID
	task.Status = models.TaskStatusRunning
	task.Config = config
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteTask removes a task from the store.
func (s *InMemoryTaskStore) DeleteTask(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tasks, id)
	return nil
}
