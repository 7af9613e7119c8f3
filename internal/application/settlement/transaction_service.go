package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/settleflow/backend/internal/domain/partner"
	"github.com/settleflow/backend/internal/domain/settlement"
	"github.com/settleflow/backend/internal/domain/shared"
	"github.com/settleflow/backend/internal/domain/shared/valueobject"
	"github.com/settleflow/backend/internal/infrastructure/telemetry"
)

// TransactionService manages cash transaction intake and moderation.
// Incoming free-text counterparty names resolve through the alias list;
// unresolved transactions are kept and surface in the unmatched queue.
type TransactionService struct {
	txRepo           settlement.CashTransactionRepository
	counterpartyRepo partner.CounterpartyRepository
	publisher        shared.EventPublisher
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(
	txRepo settlement.CashTransactionRepository,
	counterpartyRepo partner.CounterpartyRepository,
	publisher shared.EventPublisher,
) *TransactionService {
	return &TransactionService{
		txRepo:           txRepo,
		counterpartyRepo: counterpartyRepo,
		publisher:        publisher,
	}
}

// CreateTransactionRequest represents a request to record a cash transaction
type CreateTransactionRequest struct {
	TenantID         uuid.UUID
	CounterpartyName string // Free text; resolved against canonical names and aliases
	Type             settlement.TransactionType
	TransactionDate  time.Time
	Amount           decimal.Decimal
	Source           settlement.TransactionSource
	Remark           string
	ActorID          *uuid.UUID
}

// CreateTransaction records a cash transaction, resolving the free-text
// counterparty name when possible. An unresolvable name does not fail the
// request; the transaction is stored unresolved.
func (s *TransactionService) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*settlement.CashTransaction, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transaction", "create")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	rawName := strings.TrimSpace(req.CounterpartyName)
	var counterpartyID *uuid.UUID
	var counterpartyName string

	if rawName != "" {
		cp, err := s.counterpartyRepo.ResolveName(ctx, req.TenantID, rawName)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to resolve counterparty name: %w", err)
		}
		if cp != nil {
			counterpartyID = &cp.ID
			counterpartyName = cp.Name
		}
	}

	tx, err := settlement.NewCashTransaction(
		req.TenantID,
		counterpartyID,
		counterpartyName,
		rawName,
		req.Type,
		req.TransactionDate,
		valueobject.NewMoneyCNY(req.Amount),
		req.Source,
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	tx.Remark = req.Remark

	if err := s.txRepo.Save(ctx, tx); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	s.publish(ctx, collectEvents(req.ActorID, tx))
	return tx, nil
}

// GetTransaction returns a single transaction
func (s *TransactionService) GetTransaction(ctx context.Context, tenantID, id uuid.UUID) (*settlement.CashTransaction, error) {
	tx, err := s.txRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if tx == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Transaction not found")
	}
	return tx, nil
}

// ListTransactions returns transactions matching the filter
func (s *TransactionService) ListTransactions(ctx context.Context, tenantID uuid.UUID, filter settlement.TransactionFilter) (*shared.Paginated[*settlement.CashTransaction], error) {
	items, err := s.txRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	total, err := s.txRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// SetModeration applies a moderation override to a transaction
func (s *TransactionService) SetModeration(ctx context.Context, tenantID, id uuid.UUID, state settlement.ModerationState, actorID *uuid.UUID) (*settlement.CashTransaction, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transaction", "set_moderation")
	defer span.End()

	tx, err := s.GetTransaction(ctx, tenantID, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := tx.SetModeration(state); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.txRepo.SaveWithLock(ctx, tx); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, collectEvents(actorID, tx))
	return tx, nil
}

func (s *TransactionService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	_ = s.publisher.Publish(ctx, events...)
}
