package event

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/settleflow/backend/internal/domain/shared"
)

// AuditHandler writes a structured audit entry for every domain event.
// It subscribes as a wildcard handler so that new event types are covered
// without registration changes.
type AuditHandler struct {
	logger *zap.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		logger: logger.Named("audit"),
	}
}

// Handle writes the audit entry for a single event
func (h *AuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	if withActor, ok := event.(interface{ Actor() *uuid.UUID }); ok {
		if actor := withActor.Actor(); actor != nil {
			fields = append(fields, zap.String("actor_id", actor.String()))
		}
	}

	if change, ok := event.(shared.StateChange); ok {
		fields = append(fields,
			zap.Any("before", change.BeforeState()),
			zap.Any("after", change.AfterState()),
		)
	}

	// Full payload for forensic reconstruction
	if payload, err := json.Marshal(event); err == nil {
		fields = append(fields, zap.ByteString("payload", payload))
	}

	h.logger.Info("domain event", fields...)
	return nil
}

// EventTypes returns an empty slice, subscribing the handler to all events
func (h *AuditHandler) EventTypes() []string {
	return nil
}

// Ensure AuditHandler implements EventHandler
var _ shared.EventHandler = (*AuditHandler)(nil)
