package partner

import (
	"context"

	"github.com/google/uuid"

	"github.com/settleflow/backend/internal/domain/shared"
)

// CounterpartyFilter defines filtering options for counterparty queries
type CounterpartyFilter struct {
	shared.Filter
	Name string // exact canonical name
}

// CounterpartyRepository defines the interface for counterparty persistence
type CounterpartyRepository interface {
	// FindByID finds a counterparty by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Counterparty, error)

	// FindByIDForTenant finds a counterparty by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Counterparty, error)

	// FindByName finds a counterparty by its canonical name for a tenant
	FindByName(ctx context.Context, tenantID uuid.UUID, name string) (*Counterparty, error)

	// ResolveName finds the counterparty whose canonical name or alias list
	// matches the given free-text name; returns nil when unresolved
	ResolveName(ctx context.Context, tenantID uuid.UUID, name string) (*Counterparty, error)

	// FindAllForTenant finds all counterparties for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter CounterpartyFilter) ([]Counterparty, error)

	// CountForTenant counts counterparties for a tenant
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter CounterpartyFilter) (int64, error)

	// Save creates or updates a counterparty
	Save(ctx context.Context, cp *Counterparty) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, cp *Counterparty) error
}
