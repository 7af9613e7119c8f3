package settlement

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/settleflow/backend/internal/domain/settlement"
	"github.com/settleflow/backend/internal/domain/shared"
	"github.com/settleflow/backend/internal/infrastructure/telemetry"
)

// AllocationService orchestrates automatic and manual allocation of cash
// transactions to vouchers. Every mutation runs in one storage transaction
// and is guarded by optimistic locks; a single stale retry is built in so
// concurrent writers usually succeed on the second attempt.
type AllocationService struct {
	txRepo      settlement.CashTransactionRepository
	voucherRepo settlement.VoucherRepository
	allocRepo   settlement.AllocationRepository
	txManager   shared.TransactionManager
	domainSvc   *settlement.AllocationDomainService
	publisher   shared.EventPublisher
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(
	txRepo settlement.CashTransactionRepository,
	voucherRepo settlement.VoucherRepository,
	allocRepo settlement.AllocationRepository,
	txManager shared.TransactionManager,
	publisher shared.EventPublisher,
) *AllocationService {
	return &AllocationService{
		txRepo:      txRepo,
		voucherRepo: voucherRepo,
		allocRepo:   allocRepo,
		txManager:   txManager,
		domainSvc:   settlement.NewAllocationDomainService(),
		publisher:   publisher,
	}
}

// AutoAllocateRequest represents a request to allocate a transaction by FIFO
type AutoAllocateRequest struct {
	TenantID      uuid.UUID
	TransactionID uuid.UUID
	ActorID       *uuid.UUID
}

// ManualAllocateRequest represents a request with caller-chosen pairings
type ManualAllocateRequest struct {
	TenantID      uuid.UUID
	TransactionID uuid.UUID
	Pairings      []settlement.ManualAllocationRequest
	ActorID       *uuid.UUID
}

// AllocationResultItem describes one created allocation
type AllocationResultItem struct {
	AllocationID  uuid.UUID       `json:"allocation_id"`
	VoucherID     uuid.UUID       `json:"voucher_id"`
	VoucherNumber string          `json:"voucher_number"`
	Amount        decimal.Decimal `json:"amount"`
}

// AllocateResult represents the outcome of an allocation operation
type AllocateResult struct {
	TransactionID     uuid.UUID                    `json:"transaction_id"`
	Allocations       []AllocationResultItem       `json:"allocations"`
	TotalAllocated    decimal.Decimal              `json:"total_allocated"`
	RemainingAmount   decimal.Decimal              `json:"remaining_amount"`
	TransactionStatus settlement.TransactionStatus `json:"transaction_status"`
}

// AutoAllocate spreads the transaction's unallocated amount across the
// counterparty's open vouchers in FIFO order.
func (s *AllocationService) AutoAllocate(ctx context.Context, req AutoAllocateRequest) (*AllocateResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "auto_allocate")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrTransactionID, req.TransactionID.String(),
		telemetry.SpanAttrStrategy, string(settlement.AllocationStrategyTypeFIFO),
	)

	result, err := s.allocateWithRetry(ctx, req.TenantID, req.TransactionID, req.ActorID, nil)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

// ManualAllocate creates exactly the caller-specified pairings. Any pairing
// that does not fit fails the whole request; nothing is capped or skipped.
func (s *AllocationService) ManualAllocate(ctx context.Context, req ManualAllocateRequest) (*AllocateResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "manual_allocate")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrTransactionID, req.TransactionID.String(),
		telemetry.SpanAttrStrategy, string(settlement.AllocationStrategyTypeManual),
	)

	if len(req.Pairings) == 0 {
		err := shared.NewDomainError(shared.CodeValidation, "Manual allocation requires at least one pairing")
		telemetry.RecordError(span, err)
		return nil, err
	}

	result, err := s.allocateWithRetry(ctx, req.TenantID, req.TransactionID, req.ActorID, req.Pairings)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

// allocateWithRetry runs the allocation once and retries a single time when
// the optimistic lock reports stale state.
func (s *AllocationService) allocateWithRetry(
	ctx context.Context,
	tenantID, transactionID uuid.UUID,
	actorID *uuid.UUID,
	pairings []settlement.ManualAllocationRequest,
) (*AllocateResult, error) {
	result, err := s.allocateOnce(ctx, tenantID, transactionID, actorID, pairings)
	if shared.IsCode(err, shared.CodeStaleState) {
		return s.allocateOnce(ctx, tenantID, transactionID, actorID, pairings)
	}
	return result, err
}

func (s *AllocationService) allocateOnce(
	ctx context.Context,
	tenantID, transactionID uuid.UUID,
	actorID *uuid.UUID,
	pairings []settlement.ManualAllocationRequest,
) (*AllocateResult, error) {
	var result *AllocateResult
	var events []shared.DomainEvent

	err := s.txManager.InTx(ctx, func(ctx context.Context) error {
		tx, err := s.txRepo.FindByIDForTenant(ctx, tenantID, transactionID)
		if err != nil {
			return fmt.Errorf("failed to load transaction: %w", err)
		}
		if tx == nil {
			return shared.NewDomainError(shared.CodeNotFound, "Transaction not found")
		}
		if !tx.IsResolved() {
			return shared.NewDomainError(shared.CodeValidation, "Transaction has no resolved counterparty")
		}

		vouchers, err := s.voucherRepo.FindOpenByCounterpartyAndSide(ctx, tenantID, *tx.CounterpartyID, tx.Type.TargetSide())
		if err != nil {
			return fmt.Errorf("failed to load open vouchers: %w", err)
		}

		var plan *settlement.AllocationPlan
		method := settlement.AllocationMethodAuto
		if pairings == nil {
			plan, err = s.domainSvc.PlanFIFO(tx, vouchers)
		} else {
			method = settlement.AllocationMethodManual
			plan, err = s.domainSvc.PlanManual(tx, vouchers, pairings)
		}
		if err != nil {
			return err
		}

		records, err := s.domainSvc.Apply(tx, vouchers, plan, method)
		if err != nil {
			return err
		}

		// Persist in a fixed order: transaction, then vouchers, then
		// allocation rows, so concurrent writers cannot deadlock.
		if err := s.txRepo.SaveWithLock(ctx, tx); err != nil {
			return err
		}
		touched := touchedVouchers(vouchers, plan)
		for _, v := range touched {
			if err := s.voucherRepo.SaveWithLock(ctx, v); err != nil {
				return err
			}
		}
		for _, record := range records {
			if err := s.allocRepo.Save(ctx, record); err != nil {
				return fmt.Errorf("failed to save allocation: %w", err)
			}
		}

		events = collectEvents(actorID, tx)
		for _, v := range touched {
			events = append(events, collectEvents(actorID, v)...)
		}
		for _, record := range records {
			events = append(events, collectEvents(actorID, record)...)
		}

		items := make([]AllocationResultItem, 0, len(records))
		for i, record := range records {
			items = append(items, AllocationResultItem{
				AllocationID:  record.ID,
				VoucherID:     record.VoucherID,
				VoucherNumber: plan.Allocations[i].VoucherNumber,
				Amount:        record.Amount,
			})
		}
		result = &AllocateResult{
			TransactionID:     tx.ID,
			Allocations:       items,
			TotalAllocated:    plan.TotalAllocated,
			RemainingAmount:   tx.Unallocated(),
			TransactionStatus: tx.Status(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events)
	return result, nil
}

// DeleteAllocationRequest represents a request to reverse an allocation
type DeleteAllocationRequest struct {
	TenantID     uuid.UUID
	AllocationID uuid.UUID
	Reason       string
	ActorID      *uuid.UUID
}

// DeleteAllocation reverses an active allocation and restores the balances on
// the transaction and voucher. The record is kept with status REVERSED.
// A reversed or unknown allocation reports not found, so deleting twice and
// recreating behaves predictably.
func (s *AllocationService) DeleteAllocation(ctx context.Context, req DeleteAllocationRequest) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "delete")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrAllocationID, req.AllocationID.String(),
	)

	err := s.deleteOnce(ctx, req)
	if shared.IsCode(err, shared.CodeStaleState) {
		err = s.deleteOnce(ctx, req)
	}
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return err
}

func (s *AllocationService) deleteOnce(ctx context.Context, req DeleteAllocationRequest) error {
	var events []shared.DomainEvent

	err := s.txManager.InTx(ctx, func(ctx context.Context) error {
		alloc, err := s.allocRepo.FindByIDForTenant(ctx, req.TenantID, req.AllocationID)
		if err != nil {
			return fmt.Errorf("failed to load allocation: %w", err)
		}
		if alloc == nil || !alloc.IsActive() {
			return shared.NewDomainError(shared.CodeNotFound, "Allocation not found")
		}

		tx, err := s.txRepo.FindByIDForTenant(ctx, req.TenantID, alloc.TransactionID)
		if err != nil {
			return fmt.Errorf("failed to load transaction: %w", err)
		}
		if tx == nil {
			return shared.NewDomainError(shared.CodeNotFound, "Transaction not found")
		}

		voucher, err := s.voucherRepo.FindByIDForTenant(ctx, req.TenantID, alloc.VoucherID)
		if err != nil {
			return fmt.Errorf("failed to load voucher: %w", err)
		}
		if voucher == nil {
			return shared.NewDomainError(shared.CodeNotFound, "Voucher not found")
		}

		if err := s.domainSvc.ReverseAllocationRecord(alloc, tx, voucher, req.Reason); err != nil {
			return err
		}

		if err := s.txRepo.SaveWithLock(ctx, tx); err != nil {
			return err
		}
		if err := s.voucherRepo.SaveWithLock(ctx, voucher); err != nil {
			return err
		}
		if err := s.allocRepo.SaveWithLock(ctx, alloc); err != nil {
			return err
		}

		events = collectEvents(req.ActorID, tx)
		events = append(events, collectEvents(req.ActorID, voucher)...)
		events = append(events, collectEvents(req.ActorID, alloc)...)
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events)
	return nil
}

// ListAllocations returns allocations matching the filter
func (s *AllocationService) ListAllocations(ctx context.Context, tenantID uuid.UUID, filter settlement.AllocationFilter) (*shared.Paginated[*settlement.Allocation], error) {
	items, err := s.allocRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	total, err := s.allocRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count allocations: %w", err)
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// GetAllocation returns a single allocation
func (s *AllocationService) GetAllocation(ctx context.Context, tenantID, id uuid.UUID) (*settlement.Allocation, error) {
	alloc, err := s.allocRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load allocation: %w", err)
	}
	if alloc == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Allocation not found")
	}
	return alloc, nil
}

func (s *AllocationService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	// Event delivery is best effort; the write already committed.
	_ = s.publisher.Publish(ctx, events...)
}

// touchedVouchers returns the vouchers the plan mutated, in plan order
func touchedVouchers(vouchers []*settlement.Voucher, plan *settlement.AllocationPlan) []*settlement.Voucher {
	byID := make(map[uuid.UUID]*settlement.Voucher, len(vouchers))
	for _, v := range vouchers {
		byID[v.ID] = v
	}
	out := make([]*settlement.Voucher, 0, len(plan.Allocations))
	for _, planned := range plan.Allocations {
		if v, ok := byID[planned.VoucherID]; ok {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// collectEvents drains pending domain events from an aggregate and stamps the
// acting user on them.
func collectEvents(actorID *uuid.UUID, agg shared.AggregateRoot) []shared.DomainEvent {
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
