package partner

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/settleflow/backend/internal/domain/partner"
	"github.com/settleflow/backend/internal/domain/settlement"
	"github.com/settleflow/backend/internal/domain/shared"
	"github.com/settleflow/backend/internal/infrastructure/telemetry"
)

// AliasService maps free-text names from ingestion onto counterparties.
// Mapping an alias back-fills every unresolved transaction carrying that
// name, so the unmatched queue shrinks as operators work through it.
type AliasService struct {
	counterpartyRepo partner.CounterpartyRepository
	txRepo           settlement.CashTransactionRepository
	txManager        shared.TransactionManager
	publisher        shared.EventPublisher
}

// NewAliasService creates a new AliasService
func NewAliasService(
	counterpartyRepo partner.CounterpartyRepository,
	txRepo settlement.CashTransactionRepository,
	txManager shared.TransactionManager,
	publisher shared.EventPublisher,
) *AliasService {
	return &AliasService{
		counterpartyRepo: counterpartyRepo,
		txRepo:           txRepo,
		txManager:        txManager,
		publisher:        publisher,
	}
}

// ListUnmatched returns the raw names of unresolved transactions grouped by
// name, oldest first.
func (s *AliasService) ListUnmatched(ctx context.Context, tenantID uuid.UUID) ([]settlement.UnmatchedName, error) {
	names, err := s.txRepo.ListUnmatchedNames(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmatched names: %w", err)
	}
	return names, nil
}

// MapAliasRequest binds a raw name to a counterparty
type MapAliasRequest struct {
	TenantID       uuid.UUID
	CounterpartyID uuid.UUID
	Alias          string
	ActorID        *uuid.UUID
}

// MapAliasResult reports the effect of a mapping
type MapAliasResult struct {
	CounterpartyID    uuid.UUID `json:"counterparty_id"`
	Alias             string    `json:"alias"`
	TransactionsBound int       `json:"transactions_bound"`
}

// MapAlias registers the alias on the counterparty and binds every
// unresolved transaction carrying it. Mapping the same alias onto the same
// counterparty twice is a no-op for the alias and binds any transactions
// that arrived in between.
func (s *AliasService) MapAlias(ctx context.Context, req MapAliasRequest) (*MapAliasResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "alias", "map")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrCounterpartyID, req.CounterpartyID.String(),
	)

	var result *MapAliasResult
	var events []shared.DomainEvent

	err := s.txManager.InTx(ctx, func(ctx context.Context) error {
		cp, err := s.counterpartyRepo.FindByIDForTenant(ctx, req.TenantID, req.CounterpartyID)
		if err != nil {
			return fmt.Errorf("failed to load counterparty: %w", err)
		}
		if cp == nil {
			return shared.NewDomainError(shared.CodeNotFound, "Counterparty not found")
		}

		// The same raw name must not resolve to two counterparties
		other, err := s.counterpartyRepo.ResolveName(ctx, req.TenantID, req.Alias)
		if err != nil {
			return fmt.Errorf("failed to resolve alias: %w", err)
		}
		if other != nil && other.ID != cp.ID {
			return shared.NewDomainError(shared.CodeAlreadyExists,
				fmt.Sprintf("Alias %q already resolves to counterparty %q", req.Alias, other.Name))
		}

		if err := cp.AddAlias(req.Alias); err != nil {
			return err
		}
		if err := s.counterpartyRepo.SaveWithLock(ctx, cp); err != nil {
			return err
		}

		unresolved, err := s.txRepo.FindUnresolvedByRawName(ctx, req.TenantID, req.Alias)
		if err != nil {
			return fmt.Errorf("failed to load unresolved transactions: %w", err)
		}
		bound := 0
		for _, tx := range unresolved {
			if err := tx.AssignCounterparty(cp.ID, cp.Name); err != nil {
				return err
			}
			if err := s.txRepo.SaveWithLock(ctx, tx); err != nil {
				return err
			}
			events = append(events, drainEvents(req.ActorID, tx)...)
			bound++
		}

		events = append(events, drainEvents(req.ActorID, cp)...)
		result = &MapAliasResult{
			CounterpartyID:    cp.ID,
			Alias:             req.Alias,
			TransactionsBound: bound,
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, events)
	return result, nil
}

func (s *AliasService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	_ = s.publisher.Publish(ctx, events...)
}
