// Package audit emits operation records into the platform's audit pipeline.
// The primary path is an asynchronous NATS publish; when that fails the event
// is written synchronously to the audit table instead. Callers depend only on
// Record, which never propagates failure: an unrecordable audit event is
// logged and dropped rather than failing the operation it describes.
package audit

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/synalix-ai/admin-backend/internal/models"
)

// Sink accepts fire-and-forget operation records.
type Sink interface {
	Record(ctx context.Context, event *models.AuditEvent)
}

// Publisher is the message-bus side of the sink. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// LogStore is the synchronous fallback when publishing fails.
type LogStore interface {
	InsertAuditLog(ctx context.Context, event *models.AuditEvent) error
}

// Service publishes audit events to NATS with a direct-to-database fallback.
type Service struct {
	publisher Publisher
	subject   string
	fallback  LogStore
	logger    *zap.Logger
}

// NewService creates an audit sink. publisher may be nil (e.g. NATS never came
// up); every event then goes straight to the fallback store. fallback may also
// be nil, in which case undeliverable events are only logged.
func NewService(publisher Publisher, subject string, fallback LogStore, logger *zap.Logger) *Service {
	return &Service{
		publisher: publisher,
		subject:   subject,
		fallback:  fallback,
		logger:    logger,
	}
}

// Record delivers an audit event, best effort.
func (s *Service) Record(ctx context.Context, event *models.AuditEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal audit event", zap.Error(err))
		return
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(s.subject, data); err == nil {
			s.logger.Debug("Audit event published",
				zap.String("subject", s.subject),
				zap.String("operation", string(event.Operation)),
			)
			return
		} else {
			s.logger.Error("Failed to publish audit event, falling back to database",
				zap.String("operation", string(event.Operation)),
				zap.Error(err),
			)
		}
	}

	if s.fallback == nil {
		s.logger.Warn("Audit event dropped: no publisher and no fallback store",
			zap.String("operation", string(event.Operation)),
		)
		return
	}
	if err := s.fallback.InsertAuditLog(ctx, event); err != nil {
		s.logger.Error("Failed to save audit event to database",
			zap.String("operation", string(event.Operation)),
			zap.Error(err),
		)
	}
}
