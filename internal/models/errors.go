package models

import (
	"errors"
	"fmt"
)

// Common task management errors
var (
	// ErrTaskNotFound is returned when a task id resolves to nothing.
	ErrTaskNotFound = errors.New("task not found")

	// ErrModelNotFound is returned when a task references a model that does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrDatasetNotFound is returned when a task references a dataset that does not exist.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrTaskCannotStop is returned when stopping a task that is already in a terminal state.
	ErrTaskCannotStop = errors.New("task cannot be stopped in its current state")

	// ErrSubmissionFailed wraps any backend or network failure during job submission.
	ErrSubmissionFailed = errors.New("job submission to compute backend failed")

	// ErrCancellationFailed wraps any backend or network failure during job cancellation.
	ErrCancellationFailed = errors.New("job cancellation at compute backend failed")

	// ErrPermissionDenied is returned when the requester asks for GPUs outside their allow-list.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidInput is returned when a request fails basic validation.
	ErrInvalidInput = errors.New("invalid input data")
)

// TaskError carries the failing operation and the affected task id alongside
// the underlying error, so handlers and logs can report both.
type TaskError struct {
	Op  string // Operation that failed (e.g. "CreateTask", "StopTask")
	ID  string // Task id, if known
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: task %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap implements the errors.Unwrap interface.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// Is implements the errors.Is interface.
func (e *TaskError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewTaskError creates a new TaskError.
func NewTaskError(op, id string, err error) *TaskError {
	return &TaskError{Op: op, ID: id, Err: err}
}
