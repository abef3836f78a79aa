package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresRefStore resolves references to models, datasets and GPU permissions
// owned by other parts of the platform. It only ever reads.
type PostgresRefStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRefStore creates a new PostgresRefStore on an existing pool.
func NewPostgresRefStore(db *pgxpool.Pool, logger *zap.Logger) *PostgresRefStore {
	return &PostgresRefStore{db: db, logger: logger}
}

func (prs *PostgresRefStore) exists(ctx context.Context, table string, id uuid.UUID) (bool, error) {
	// table is always a compile-time constant from the callers below.
	sqlQuery := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table)

	var exists bool
	if err := prs.db.QueryRow(ctx, sqlQuery, id).Scan(&exists); err != nil {
		prs.logger.Error("Existence check failed",
			zap.String("table", table),
			zap.String("id", id.String()),
			zap.Error(err),
		)
		return false, fmt.Errorf("checking %s %s: %w", table, id, err)
	}
	return exists, nil
}

// ModelExists reports whether the referenced model exists.
func (prs *PostgresRefStore) ModelExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return prs.exists(ctx, "models", id)
}

// DatasetExists reports whether the referenced dataset exists.
func (prs *PostgresRefStore) DatasetExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return prs.exists(ctx, "datasets", id)
}

// AllowedGPUIDs returns the GPU indices the user is permitted to request.
func (prs *PostgresRefStore) AllowedGPUIDs(ctx context.Context, userID uuid.UUID) ([]int, error) {
	sqlQuery := `SELECT gpu_id FROM user_gpu_permissions WHERE user_id = $1 ORDER BY gpu_id`

	rows, err := prs.db.Query(ctx, sqlQuery, userID)
	if err != nil {
		prs.logger.Error("Failed to query GPU permissions", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("querying gpu permissions for user %s: %w", userID, err)
	}
	defer rows.Close()

	var gpuIDs []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning gpu permission row: %w", err)
		}
		gpuIDs = append(gpuIDs, id)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterating gpu permission rows: %w", rows.Err())
	}
	return gpuIDs, nil
}
