package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/synalix-ai/admin-backend/internal/models"
	"github.com/synalix-ai/admin-backend/internal/retryer"
)

// PostgresTaskStore implements the TaskStore interface using a PostgreSQL database.
type PostgresTaskStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
	retry  retryer.DatabaseRetryConfig
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
// It expects a connected pgxpool.Pool.
func NewPostgresTaskStore(db *pgxpool.Pool, logger *zap.Logger) *PostgresTaskStore {
	return &PostgresTaskStore{
		db:     db,
		logger: logger,
		retry:  retryer.DefaultRetryConfig(),
	}
}

// Initialize creates the 'tasks' table if it doesn't already exist.
func (pts *PostgresTaskStore) Initialize(ctx context.Context) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS tasks (
		id UUID PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		type VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL,
		model_id UUID NOT NULL,
		dataset_id UUID NOT NULL,
		config JSONB,
		created_by UUID NOT NULL,
		external_task_id VARCHAR(100),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status);
	CREATE INDEX IF NOT EXISTS idx_tasks_type ON tasks (type);
	CREATE INDEX IF NOT EXISTS idx_tasks_created_by ON tasks (created_by);
	CREATE INDEX IF NOT EXISTS idx_tasks_external_task_id ON tasks (external_task_id) WHERE external_task_id IS NOT NULL;
	`

	_, err := pts.db.Exec(ctx, createTableSQL)
	if err != nil {
		pts.logger.Error("Failed to create 'tasks' table", zap.Error(err))
		return fmt.Errorf("initializing tasks table: %w", err)
	}
	pts.logger.Info("'tasks' table checked/created successfully")
	return nil
}

// CreateTask inserts a new task record.
func (pts *PostgresTaskStore) CreateTask(ctx context.Context, task *models.Task) error {
	configJSON, err := json.Marshal(task.Config)
	if err != nil {
		return fmt.Errorf("marshalling config for CreateTask: %w", err)
	}

	sqlQuery := `
	INSERT INTO tasks (
		id, name, type, status, model_id, dataset_id, config,
		created_by, external_task_id, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	err = retryer.WithRetry(ctx, pts.logger, pts.retry, "CreateTask", func() error {
		_, execErr := pts.db.Exec(ctx, sqlQuery,
			task.ID,
			task.Name,
			task.Type,
			task.Status,
			task.ModelID,
			task.DatasetID,
			configJSON,
			task.CreatedBy,
			sql.NullString{String: task.ExternalTaskID, Valid: task.ExternalTaskID != ""},
			task.CreatedAt,
			task.UpdatedAt,
		)
		return execErr
	})
	if err != nil {
		pts.logger.Error("Failed to insert task", zap.String("task_id", task.ID.String()), zap.Error(err))
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return fmt.Errorf("inserting task %s (SQL state %s): %w", task.ID, pgErr.Code, err)
		}
		return fmt.Errorf("inserting task %s: %w", task.ID, err)
	}
	pts.logger.Debug("Task inserted", zap.String("task_id", task.ID.String()))
	return nil
}

const taskColumns = `
	id, name, type, status, model_id, dataset_id, config,
	created_by, external_task_id, created_at, updated_at`

func scanTask(row pgx.Row) (*models.Task, error) {
	task := &models.Task{}
	var configBytes []byte
	var externalIDNullable sql.NullString

	err := row.Scan(
		&task.ID,
		&task.Name,
		&task.Type,
		&task.Status,
		&task.ModelID,
		&task.DatasetID,
		&configBytes,
		&task.CreatedBy,
		&externalIDNullable,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(configBytes) > 0 {
		if err := json.Unmarshal(configBytes, &task.Config); err != nil {
			return nil, fmt.Errorf("unmarshalling config for task %s: %w", task.ID, err)
		}
	}
	if externalIDNullable.Valid {
		task.ExternalTaskID = externalIDNullable.String
	}
	return task, nil
}

// GetTask retrieves a task by its id.
func (pts *PostgresTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	sqlQuery := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(pts.db.QueryRow(ctx, sqlQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			pts.logger.Debug("Task not found in DB", zap.String("task_id", id.String()))
			return nil, models.ErrTaskNotFound
		}
		pts.logger.Error("Failed to get task from DB", zap.String("task_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	return task, nil
}

// ListTasks retrieves tasks matching the filter, newest first.
func (pts *PostgresTaskStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*models.Task, error) {
	sqlQuery := `SELECT ` + taskColumns + ` FROM tasks`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	for i, cond := range conditions {
		if i == 0 {
			sqlQuery += " WHERE " + cond
		} else {
			sqlQuery += " AND " + cond
		}
	}
	sqlQuery += " ORDER BY created_at DESC"

	rows, err := pts.db.Query(ctx, sqlQuery, args...)
	if err != nil {
		pts.logger.Error("Failed to list tasks from DB", zap.Error(err))
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			pts.logger.Error("Error scanning task row", zap.Error(scanErr))
			return nil, fmt.Errorf("scanning task row: %w", scanErr)
		}
		tasks = append(tasks, task)
	}
	if rows.Err() != nil {
		pts.logger.Error("Error iterating over task rows", zap.Error(rows.Err()))
		return nil, fmt.Errorf("iterating task rows: %w", rows.Err())
	}
	return tasks, nil
}

// UpdateStatus overwrites a task's status. Last-write-wins: a concurrent stop
// and poll-refresh race is resolved by whichever UPDATE lands second.
func (pts *PostgresTaskStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) error {
	sqlQuery := `UPDATE tasks SET status = $1, updated_at = $2 WHERE id = $3`

	cmdTag, err := pts.db.Exec(ctx, sqlQuery, status, time.Now().UTC(), id)
	if err != nil {
		pts.logger.Error("Failed to update task status in DB", zap.String("task_id", id.String()), zap.Error(err))
		return fmt.Errorf("updating status for task %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		pts.logger.Warn("UpdateStatus affected no rows", zap.String("task_id", id.String()))
		return models.ErrTaskNotFound
	}
	pts.logger.Debug("Task status updated",
		zap.String("task_id", id.String()),
		zap.String("new_status", string(status)),
	)
	return nil
}

// SetSubmitted records a successful submission to the external backend.
func (pts *PostgresTaskStore) SetSubmitted(ctx context.Context, id uuid.UUID, externalTaskID string, config map[string]interface{}) error {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshalling config for SetSubmitted: %w", err)
	}

	sqlQuery := `
	UPDATE tasks
	SET external_task_id = $1, status = $2, config = $3, updated_at = $4
	WHERE id = $5
	`

	cmdTag, err := pts.db.Exec(ctx, sqlQuery, externalTaskID, models.TaskStatusRunning, configJSON, time.Now().UTC(), id)
	if err != nil {
		pts.logger.Error("Failed to record task submission in DB", zap.String("task_id", id.String()), zap.Error(err))
		return fmt.Errorf("recording submission for task %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrTaskNotFound
	}
	pts.logger.Debug("Task submission recorded",
		zap.String("task_id", id.String()),
		zap.String("external_task_id", externalTaskID),
	)
	return nil
}

// DeleteTask removes a task record.
func (pts *PostgresTaskStore) DeleteTask(ctx context.Context, id uuid.UUID) error {
	sqlQuery := `DELETE FROM tasks WHERE id = $1`
	cmdTag, err := pts.db.Exec(ctx, sqlQuery, id)
	if err != nil {
		pts.logger.Error("Failed to delete task from DB", zap.String("task_id", id.String()), zap.Error(err))
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		pts.logger.Warn("DeleteTask affected no rows, task might not exist", zap.String("task_id", id.String()))
	}
	return nil
}

// Close closes the database connection pool.
func (pts *PostgresTaskStore) Close() error {
	if pts.db != nil {
		pts.logger.Info("Closing PostgresTaskStore database connection pool...")
		pts.db.Close()
	}
	return nil
}
