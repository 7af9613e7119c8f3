package partner

import (
	"github.com/google/uuid"

	"github.com/settleflow/backend/internal/domain/shared"
)

// CounterpartyCreatedEvent is raised when a new counterparty is created
type CounterpartyCreatedEvent struct {
	shared.BaseDomainEvent
	CounterpartyID uuid.UUID `json:"counterparty_id"`
	Name           string    `json:"name"`
}

// EventType returns the event type name
func (e *CounterpartyCreatedEvent) EventType() string {
	return "CounterpartyCreated"
}

// NewCounterpartyCreatedEvent creates a new CounterpartyCreatedEvent
func NewCounterpartyCreatedEvent(cp *Counterparty) *CounterpartyCreatedEvent {
	return &CounterpartyCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CounterpartyCreated", "Counterparty", cp.ID, cp.TenantID),
		CounterpartyID:  cp.ID,
		Name:            cp.Name,
	}
}

// CounterpartyAliasAddedEvent is raised when a free-text alias is bound to a counterparty
type CounterpartyAliasAddedEvent struct {
	shared.BaseDomainEvent
	CounterpartyID uuid.UUID `json:"counterparty_id"`
	Name           string    `json:"name"`
	Alias          string    `json:"alias"`
}

// EventType returns the event type name
func (e *CounterpartyAliasAddedEvent) EventType() string {
	return "CounterpartyAliasAdded"
}

// NewCounterpartyAliasAddedEvent creates a new CounterpartyAliasAddedEvent
func NewCounterpartyAliasAddedEvent(cp *Counterparty, alias string) *CounterpartyAliasAddedEvent {
	return &CounterpartyAliasAddedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CounterpartyAliasAdded", "Counterparty", cp.ID, cp.TenantID),
		CounterpartyID:  cp.ID,
		Name:            cp.Name,
		Alias:           alias,
	}
}
