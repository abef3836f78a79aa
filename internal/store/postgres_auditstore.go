package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/synalix-ai/admin-backend/internal/models"
)

// PostgresAuditStore is the synchronous fallback target for audit events that
// could not be published to the message bus.
type PostgresAuditStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresAuditStore creates a new PostgresAuditStore on an existing pool.
func NewPostgresAuditStore(db *pgxpool.Pool, logger *zap.Logger) *PostgresAuditStore {
	return &PostgresAuditStore{db: db, logger: logger}
}

// Initialize creates the 'audit_logs' table if it doesn't already exist.
func (pas *PostgresAuditStore) Initialize(ctx context.Context) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		operation_type VARCHAR(50) NOT NULL,
		user_id UUID NOT NULL,
		resource_id VARCHAR(255),
		details JSONB,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs (user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_operation_type ON audit_logs (operation_type);
	`

	_, err := pas.db.Exec(ctx, createTableSQL)
	if err != nil {
		pas.logger.Error("Failed to create 'audit_logs' table", zap.Error(err))
		return fmt.Errorf("initializing audit_logs table: %w", err)
	}
	pas.logger.Info("'audit_logs' table checked/created successfully")
	return nil
}

// InsertAuditLog writes a single audit event directly to the database.
func (pas *PostgresAuditStore) InsertAuditLog(ctx context.Context, event *models.AuditEvent) error {
	detailsJSON, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshalling audit details: %w", err)
	}

	sqlQuery := `
	INSERT INTO audit_logs (id, operation_type, user_id, resource_id, details, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = pas.db.Exec(ctx, sqlQuery,
		uuid.New(),
		event.Operation,
		event.UserID,
		event.ResourceID,
		detailsJSON,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}
