package partner

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/settleflow/backend/internal/domain/partner"
	"github.com/settleflow/backend/internal/domain/shared"
	"github.com/settleflow/backend/internal/infrastructure/telemetry"
)

// CounterpartyService manages canonical counterparties
type CounterpartyService struct {
	repo      partner.CounterpartyRepository
	publisher shared.EventPublisher
}

// NewCounterpartyService creates a new CounterpartyService
func NewCounterpartyService(repo partner.CounterpartyRepository, publisher shared.EventPublisher) *CounterpartyService {
	return &CounterpartyService{repo: repo, publisher: publisher}
}

// CreateCounterpartyRequest represents a request to register a counterparty
type CreateCounterpartyRequest struct {
	TenantID uuid.UUID
	Name     string
	Aliases  []string
	Remark   string
	ActorID  *uuid.UUID
}

// CreateCounterparty registers a new canonical counterparty with optional
// initial aliases.
func (s *CounterpartyService) CreateCounterparty(ctx context.Context, req CreateCounterpartyRequest) (*partner.Counterparty, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "counterparty", "create")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, req.TenantID.String())

	existing, err := s.repo.FindByName(ctx, req.TenantID, req.Name)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to check counterparty name: %w", err)
	}
	if existing != nil {
		err := shared.NewDomainError(shared.CodeAlreadyExists,
			fmt.Sprintf("Counterparty %q already exists", req.Name))
		telemetry.RecordError(span, err)
		return nil, err
	}

	cp, err := partner.NewCounterparty(req.TenantID, req.Name)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	cp.Remark = req.Remark
	for _, alias := range req.Aliases {
		if err := cp.AddAlias(alias); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	if err := s.repo.Save(ctx, cp); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save counterparty: %w", err)
	}

	s.publish(ctx, drainEvents(req.ActorID, cp))
	return cp, nil
}

// GetCounterparty returns a single counterparty
func (s *CounterpartyService) GetCounterparty(ctx context.Context, tenantID, id uuid.UUID) (*partner.Counterparty, error) {
	cp, err := s.repo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load counterparty: %w", err)
	}
	if cp == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Counterparty not found")
	}
	return cp, nil
}

// ListCounterparties returns counterparties matching the filter
func (s *CounterpartyService) ListCounterparties(ctx context.Context, tenantID uuid.UUID, filter partner.CounterpartyFilter) (*shared.Paginated[partner.Counterparty], error) {
	items, err := s.repo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list counterparties: %w", err)
	}
	total, err := s.repo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count counterparties: %w", err)
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// RenameCounterparty changes the canonical name, keeping the old name as an
// alias so existing references still resolve.
func (s *CounterpartyService) RenameCounterparty(ctx context.Context, tenantID, id uuid.UUID, name string, actorID *uuid.UUID) (*partner.Counterparty, error) {
	cp, err := s.GetCounterparty(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if err := cp.Rename(name); err != nil {
		return nil, err
	}
	if err := s.repo.SaveWithLock(ctx, cp); err != nil {
		return nil, err
	}

	s.publish(ctx, drainEvents(actorID, cp))
	return cp, nil
}

func (s *CounterpartyService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	_ = s.publisher.Publish(ctx, events...)
}

// drainEvents drains pending domain events from an aggregate and stamps the
// acting user on them.
func drainEvents(actorID *uuid.UUID, agg shared.AggregateRoot) []shared.DomainEvent {
	events := agg.GetDomainEvents()
	agg.ClearDomainEvents()
	if actorID != nil {
		for _, e := range events {
			if base, ok := e.(interface{ SetActor(uuid.UUID) }); ok {
				base.SetActor(*actorID)
			}
		}
	}
	return events
}
