package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/settleflow/backend/internal/domain/shared"
)

// testEvent implements DomainEvent for testing
type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", uuid.New(), uuid.New()),
	}
}

// testHandler implements EventHandler for testing
type testHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panics     bool
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.panics {
		panic("handler exploded")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) getHandled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func TestInMemoryEventBus_PublishToTypedHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("VoucherCreated")
	bus.Subscribe(handler, "VoucherCreated")

	event := newTestEvent("VoucherCreated")
	require.NoError(t, bus.Publish(context.Background(), event))

	handled := handler.getHandled()
	require.Len(t, handled, 1)
	assert.Equal(t, event.EventID(), handled[0].EventID())
}

func TestInMemoryEventBus_TypedHandlerIgnoresOtherTypes(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("VoucherCreated")
	bus.Subscribe(handler, "VoucherCreated")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("AllocationCreated")))
	assert.Empty(t, handler.getHandled())
}

func TestInMemoryEventBus_WildcardReceivesEverything(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	wildcard := newTestHandler()
	bus.Subscribe(wildcard)

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("VoucherCreated"),
		newTestEvent("AllocationCreated"),
		newTestEvent("NettingConfirmed"),
	))
	assert.Len(t, wildcard.getHandled(), 3)
}

func TestInMemoryEventBus_SubscribeUsesHandlerEventTypes(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("NettingConfirmed")
	bus.Subscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("NettingConfirmed")))
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("VoucherCreated")))
	assert.Len(t, handler.getHandled(), 1)
}

func TestInMemoryEventBus_FailingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	failing := newTestHandler("VoucherCreated")
	failing.err = errors.New("boom")
	healthy := newTestHandler("VoucherCreated")
	bus.Subscribe(failing, "VoucherCreated")
	bus.Subscribe(healthy, "VoucherCreated")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("VoucherCreated")))
	assert.Len(t, healthy.getHandled(), 1)
}

func TestInMemoryEventBus_PanickingHandlerIsContained(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	panicking := newTestHandler("VoucherCreated")
	panicking.panics = true
	healthy := newTestHandler("VoucherCreated")
	bus.Subscribe(panicking, "VoucherCreated")
	bus.Subscribe(healthy, "VoucherCreated")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("VoucherCreated")))
	assert.Len(t, healthy.getHandled(), 1)
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("VoucherCreated")
	bus.Subscribe(handler, "VoucherCreated")
	bus.Unsubscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("VoucherCreated")))
	assert.Empty(t, handler.getHandled())
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Stop(context.Background()))
}
