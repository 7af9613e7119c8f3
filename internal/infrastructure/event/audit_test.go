package event

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/settleflow/backend/internal/domain/shared"
)

// transitionEvent implements DomainEvent plus StateChange for testing
type transitionEvent struct {
	shared.BaseDomainEvent
	from string
	to   string
}

func (e *transitionEvent) BeforeState() any { return e.from }
func (e *transitionEvent) AfterState() any  { return e.to }

func newAuditObserver() (*AuditHandler, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	return NewAuditHandler(zap.New(core)), logs
}

func TestAuditHandler_LogsEventIdentity(t *testing.T) {
	handler, logs := newAuditObserver()
	evt := newTestEvent("VoucherCreated")

	require.NoError(t, handler.Handle(context.Background(), evt))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "VoucherCreated", fields["event_type"])
	assert.Equal(t, evt.AggregateID().String(), fields["aggregate_id"])
	assert.Equal(t, evt.TenantID().String(), fields["tenant_id"])
	assert.Contains(t, fields, "payload")
}

func TestAuditHandler_LogsActor(t *testing.T) {
	handler, logs := newAuditObserver()
	evt := newTestEvent("VoucherCreated")
	actor := uuid.New()
	evt.SetActor(actor)

	require.NoError(t, handler.Handle(context.Background(), evt))

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, actor.String(), fields["actor_id"])
}

func TestAuditHandler_LogsBeforeAndAfterState(t *testing.T) {
	handler, logs := newAuditObserver()
	evt := &transitionEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("NettingConfirmed", "NettingRecord", uuid.New(), uuid.New()),
		from:            "DRAFT",
		to:              "CONFIRMED",
	}

	require.NoError(t, handler.Handle(context.Background(), evt))

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "DRAFT", fields["before"])
	assert.Equal(t, "CONFIRMED", fields["after"])
}

func TestAuditHandler_NoStateFieldsWithoutStateChange(t *testing.T) {
	handler, logs := newAuditObserver()

	require.NoError(t, handler.Handle(context.Background(), newTestEvent("VoucherCreated")))

	fields := logs.All()[0].ContextMap()
	assert.NotContains(t, fields, "before")
	assert.NotContains(t, fields, "after")
}
