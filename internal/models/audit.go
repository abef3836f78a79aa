package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditOperation identifies what kind of operation an audit event records.
type AuditOperation string

const (
	AuditTaskCreate AuditOperation = "TASK_CREATE"
	AuditTaskStop   AuditOperation = "TASK_STOP"
)

// AuditEvent is a fire-and-forget operation record. The orchestrator emits
// these; delivery guarantees belong to the audit pipeline, not the emitter.
type AuditEvent struct {
	Operation  AuditOperation         `json:"operation"`
	UserID     uuid.UUID              `json:"user_id"`
	ResourceID string                 `json:"resource_id"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// NewAuditEvent builds an AuditEvent stamped with the current time.
func NewAuditEvent(op AuditOperation, userID uuid.UUID, resourceID string, details map[string]interface{}) *AuditEvent {
	return &AuditEvent{
		Operation:  op,
		UserID:     userID,
		ResourceID: resourceID,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}
}
