package settlement

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/settleflow/backend/internal/domain/partner"
	"github.com/settleflow/backend/internal/domain/settlement"
	"github.com/settleflow/backend/internal/domain/shared"
	"github.com/settleflow/backend/internal/domain/shared/valueobject"
	"github.com/settleflow/backend/internal/infrastructure/telemetry"
)

// IdempotencyStore guards operations that must not run twice concurrently.
// Acquire returns false when another caller already holds the key.
type IdempotencyStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// confirmLockTTL bounds how long a crashed confirm can block retries
const confirmLockTTL = 30 * time.Second

// NettingService manages netting drafts and their confirmation. Confirming a
// draft synthesizes one deposit and one withdrawal of the netted amount,
// both fully allocated to the participating vouchers, so every voucher
// balance moves through the same allocation path as real cash.
type NettingService struct {
	nettingRepo      settlement.NettingRepository
	voucherRepo      settlement.VoucherRepository
	txRepo           settlement.CashTransactionRepository
	allocRepo        settlement.AllocationRepository
	counterpartyRepo partner.CounterpartyRepository
	txManager        shared.TransactionManager
	idempotency      IdempotencyStore
	publisher        shared.EventPublisher
}

// NewNettingService creates a new NettingService
func NewNettingService(
	nettingRepo settlement.NettingRepository,
	voucherRepo settlement.VoucherRepository,
	txRepo settlement.CashTransactionRepository,
	allocRepo settlement.AllocationRepository,
	counterpartyRepo partner.CounterpartyRepository,
	txManager shared.TransactionManager,
	idempotency IdempotencyStore,
	publisher shared.EventPublisher,
) *NettingService {
	return &NettingService{
		nettingRepo:      nettingRepo,
		voucherRepo:      voucherRepo,
		txRepo:           txRepo,
		allocRepo:        allocRepo,
		counterpartyRepo: counterpartyRepo,
		txManager:        txManager,
		idempotency:      idempotency,
		publisher:        publisher,
	}
}

// EligibleVouchers lists a counterparty's open vouchers on both sides
type EligibleVouchers struct {
	CounterpartyID uuid.UUID             `json:"counterparty_id"`
	Sales          []*settlement.Voucher `json:"sales"`
	Purchases      []*settlement.Voucher `json:"purchases"`
	NettableAmount decimal.Decimal       `json:"nettable_amount"`
}

// GetEligible returns the open vouchers a netting draft could include
func (s *NettingService) GetEligible(ctx context.Context, tenantID, counterpartyID uuid.UUID) (*EligibleVouchers, error) {
	sales, err := s.voucherRepo.FindOpenByCounterpartyAndSide(ctx, tenantID, counterpartyID, settlement.SideSales)
	if err != nil {
		return nil, fmt.Errorf("failed to load open sales vouchers: %w", err)
	}
	purchases, err := s.voucherRepo.FindOpenByCounterpartyAndSide(ctx, tenantID, counterpartyID, settlement.SidePurchase)
	if err != nil {
		return nil, fmt.Errorf("failed to load open purchase vouchers: %w", err)
	}

	salesTotal := decimal.Zero
	for _, v := range sales {
		salesTotal = salesTotal.Add(v.Balance())
	}
	purchaseTotal := decimal.Zero
	for _, v := range purchases {
		purchaseTotal = purchaseTotal.Add(v.Balance())
	}

	return &EligibleVouchers{
		CounterpartyID: counterpartyID,
		Sales:          sales,
		Purchases:      purchases,
		NettableAmount: decimal.Min(salesTotal, purchaseTotal),
	}, nil
}

// NettingLineRequest is one voucher's participation in a draft
type NettingLineRequest struct {
	VoucherID uuid.UUID
	Amount    decimal.Decimal
}

// CreateDraftRequest represents a request to create a netting draft
type CreateDraftRequest struct {
	TenantID       uuid.UUID
	CounterpartyID uuid.UUID
	NettingDate    time.Time
	Lines          []NettingLineRequest
	Remark         string
	ActorID        *uuid.UUID
}

// CreateDraft validates the requested lines against current voucher balances
// and stores a balanced draft. No voucher balance moves until confirmation.
func (s *NettingService) CreateDraft(ctx context.Context, req CreateDraftRequest) (*settlement.NettingRecord, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "netting", "create_draft")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrCounterpartyID, req.CounterpartyID.String(),
	)

	cp, err := s.counterpartyRepo.FindByIDForTenant(ctx, req.TenantID, req.CounterpartyID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load counterparty: %w", err)
	}
	if cp == nil {
		err := shared.NewDomainError(shared.CodeNotFound, "Counterparty not found")
		telemetry.RecordError(span, err)
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(req.Lines))
	for _, line := range req.Lines {
		ids = append(ids, line.VoucherID)
	}
	vouchers, err := s.voucherRepo.FindByIDsForTenant(ctx, req.TenantID, ids)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load vouchers: %w", err)
	}
	byID := make(map[uuid.UUID]*settlement.Voucher, len(vouchers))
	for _, v := range vouchers {
		byID[v.ID] = v
	}

	lines, err := s.buildLines(req.CounterpartyID, req.Lines, byID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	nettingDate := req.NettingDate
	if nettingDate.IsZero() {
		nettingDate = time.Now()
	}
	record, err := settlement.NewNettingDraft(req.TenantID, cp.ID, cp.Name, nettingDate, lines, req.Remark)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.nettingRepo.Save(ctx, record); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save netting draft: %w", err)
	}

	s.publish(ctx, collectEvents(req.ActorID, record))
	return record, nil
}

func (s *NettingService) buildLines(
	counterpartyID uuid.UUID,
	requested []NettingLineRequest,
	byID map[uuid.UUID]*settlement.Voucher,
) (settlement.NettingLines, error) {
	lines := make(settlement.NettingLines, 0, len(requested))
	for _, lr := range requested {
		v, ok := byID[lr.VoucherID]
		if !ok {
			return nil, shared.NewDomainError(shared.CodeNotFound,
				fmt.Sprintf("Voucher %s not found", lr.VoucherID))
		}
		if v.CounterpartyID != counterpartyID {
			return nil, shared.NewDomainError(shared.CodeValidation,
				fmt.Sprintf("Voucher %s belongs to another counterparty", v.VoucherNumber))
		}
		if !v.CanMutate() {
			return nil, shared.NewDomainError(shared.CodeModerationLocked,
				fmt.Sprintf("Voucher %s is %s", v.VoucherNumber, v.Moderation))
		}
		if lr.Amount.GreaterThan(v.Balance()) {
			return nil, shared.NewDomainError(shared.CodeInsufficientBalance,
				fmt.Sprintf("Netting amount %s exceeds voucher %s balance %s", lr.Amount, v.VoucherNumber, v.Balance()))
		}
		lines = append(lines, settlement.NettingLine{
			VoucherID:      v.ID,
			VoucherNumber:  v.VoucherNumber,
			Side:           v.Side,
			Amount:         lr.Amount,
			VoucherVersion: v.Version,
		})
	}
	return lines, nil
}

// Confirm executes a draft atomically. Every line is re-validated against the
// live voucher: a version that moved since the draft fails the whole confirm
// with stale state, and nothing is applied. Confirming an already confirmed
// record returns it unchanged.
func (s *NettingService) Confirm(ctx context.Context, tenantID, nettingID uuid.UUID, actorID *uuid.UUID) (*settlement.NettingRecord, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "netting", "confirm")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrNettingID, nettingID.String(),
	)

	key := fmt.Sprintf("netting:confirm:%s", nettingID)
	if s.idempotency != nil {
		acquired, err := s.idempotency.Acquire(ctx, key, confirmLockTTL)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to acquire confirmation lock: %w", err)
		}
		if !acquired {
			err := shared.NewDomainError(shared.CodeAlreadyExists, "Confirmation already in progress")
			telemetry.RecordError(span, err)
			return nil, err
		}
		defer func() { _ = s.idempotency.Release(ctx, key) }()
	}

	var record *settlement.NettingRecord
	var events []shared.DomainEvent

	err := s.txManager.InTx(ctx, func(ctx context.Context) error {
		var err error
		record, err = s.nettingRepo.FindByIDForTenant(ctx, tenantID, nettingID)
		if err != nil {
			return fmt.Errorf("failed to load netting record: %w", err)
		}
		if record == nil {
			return shared.NewDomainError(shared.CodeNotFound, "Netting record not found")
		}
		if record.Status == settlement.NettingStatusConfirmed {
			return nil
		}
		if !record.IsDraft() {
			return shared.NewDomainError(shared.CodeIllegalTransition,
				fmt.Sprintf("Netting %s is %s, only drafts can be confirmed", record.ID, record.Status))
		}

		ids := make([]uuid.UUID, 0, len(record.Lines))
		for _, line := range record.Lines {
			ids = append(ids, line.VoucherID)
		}
		vouchers, err := s.voucherRepo.FindByIDsForTenant(ctx, tenantID, ids)
		if err != nil {
			return fmt.Errorf("failed to load vouchers: %w", err)
		}
		byID := make(map[uuid.UUID]*settlement.Voucher, len(vouchers))
		for _, v := range vouchers {
			byID[v.ID] = v
		}

		for _, line := range record.Lines {
			v, ok := byID[line.VoucherID]
			if !ok {
				return shared.NewDomainError(shared.CodeStaleState,
					fmt.Sprintf("Voucher %s no longer exists", line.VoucherNumber))
			}
			if v.Version != line.VoucherVersion {
				return shared.NewDomainError(shared.CodeStaleState,
					fmt.Sprintf("Voucher %s changed since the draft was created", line.VoucherNumber))
			}
			if !v.CanMutate() {
				return shared.NewDomainError(shared.CodeStaleState,
					fmt.Sprintf("Voucher %s is %s", line.VoucherNumber, v.Moderation))
			}
			if line.Amount.GreaterThan(v.Balance()) {
				return shared.NewDomainError(shared.CodeStaleState,
					fmt.Sprintf("Voucher %s balance dropped below the netted amount", line.VoucherNumber))
			}
		}

		// Two synthetic transactions of the netted amount carry the offset,
		// one per side, each fully consumed by its lines.
		deposit, err := settlement.NewCashTransaction(
			tenantID,
			&record.CounterpartyID,
			record.CounterpartyName,
			record.CounterpartyName,
			settlement.TransactionTypeDeposit,
			record.NettingDate,
			valueobject.NewMoneyCNY(record.NettedAmount),
			settlement.SourceNetting,
		)
		if err != nil {
			return err
		}
		withdrawal, err := settlement.NewCashTransaction(
			tenantID,
			&record.CounterpartyID,
			record.CounterpartyName,
			record.CounterpartyName,
			settlement.TransactionTypeWithdrawal,
			record.NettingDate,
			valueobject.NewMoneyCNY(record.NettedAmount),
			settlement.SourceNetting,
		)
		if err != nil {
			return err
		}

		allocations := make([]*settlement.Allocation, 0, len(record.Lines))
		for _, line := range record.Lines {
			v := byID[line.VoucherID]
			tx := deposit
			if line.Side == settlement.SidePurchase {
				tx = withdrawal
			}

			amount := valueobject.NewMoneyCNY(line.Amount)
			if err := v.ApplyAllocation(amount); err != nil {
				return err
			}
			if err := tx.ApplyAllocation(amount); err != nil {
				return err
			}
			alloc, err := settlement.NewAllocation(tenantID, tx.ID, v.ID, amount, settlement.AllocationMethodNetting)
			if err != nil {
				return err
			}
			allocations = append(allocations, alloc)
		}

		if !deposit.IsFullyAllocated() || !withdrawal.IsFullyAllocated() {
			return shared.NewDomainError(shared.CodeUnbalancedNetting, "Netting lines do not consume the netted amount")
		}

		if err := record.MarkConfirmed(deposit.ID, withdrawal.ID); err != nil {
			return err
		}

		if err := s.txRepo.Save(ctx, deposit); err != nil {
			return fmt.Errorf("failed to save deposit: %w", err)
		}
		if err := s.txRepo.Save(ctx, withdrawal); err != nil {
			return fmt.Errorf("failed to save withdrawal: %w", err)
		}
		// Lock vouchers in ID order so concurrent confirms and allocations
		// acquire row locks the same way
		sort.Slice(vouchers, func(i, j int) bool {
			return vouchers[i].ID.String() < vouchers[j].ID.String()
		})
		for _, v := range vouchers {
			if err := s.voucherRepo.SaveWithLock(ctx, v); err != nil {
				return err
			}
		}
		for _, alloc := range allocations {
			if err := s.allocRepo.Save(ctx, alloc); err != nil {
				return fmt.Errorf("failed to save allocation: %w", err)
			}
		}
		if err := s.nettingRepo.SaveWithLock(ctx, record); err != nil {
			return err
		}

		events = collectEvents(actorID, record)
		events = append(events, collectEvents(actorID, deposit)...)
		events = append(events, collectEvents(actorID, withdrawal)...)
		for _, v := range vouchers {
			events = append(events, collectEvents(actorID, v)...)
		}
		for _, alloc := range allocations {
			events = append(events, collectEvents(actorID, alloc)...)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, events)
	return record, nil
}

// Cancel voids a draft or unwinds a confirmed netting. Unwinding reverses
// every allocation the confirm created and cancels both synthetic
// transactions, restoring all voucher balances.
func (s *NettingService) Cancel(ctx context.Context, tenantID, nettingID uuid.UUID, reason string, actorID *uuid.UUID) (*settlement.NettingRecord, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "netting", "cancel")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrNettingID, nettingID.String(),
	)

	var record *settlement.NettingRecord
	var events []shared.DomainEvent

	err := s.txManager.InTx(ctx, func(ctx context.Context) error {
		var err error
		record, err = s.nettingRepo.FindByIDForTenant(ctx, tenantID, nettingID)
		if err != nil {
			return fmt.Errorf("failed to load netting record: %w", err)
		}
		if record == nil {
			return shared.NewDomainError(shared.CodeNotFound, "Netting record not found")
		}

		if record.Status == settlement.NettingStatusConfirmed {
			if err := s.unwindConfirmed(ctx, tenantID, record, reason, actorID, &events); err != nil {
				return err
			}
		}

		if err := record.MarkCancelled(reason); err != nil {
			return err
		}
		if err := s.nettingRepo.SaveWithLock(ctx, record); err != nil {
			return err
		}

		events = append(events, collectEvents(actorID, record)...)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, events)
	return record, nil
}

func (s *NettingService) unwindConfirmed(
	ctx context.Context,
	tenantID uuid.UUID,
	record *settlement.NettingRecord,
	reason string,
	actorID *uuid.UUID,
	events *[]shared.DomainEvent,
) error {
	domainSvc := settlement.NewAllocationDomainService()

	for _, txID := range []*uuid.UUID{record.DepositTransactionID, record.WithdrawalTransactionID} {
		if txID == nil {
			continue
		}
		tx, err := s.txRepo.FindByIDForTenant(ctx, tenantID, *txID)
		if err != nil {
			return fmt.Errorf("failed to load synthetic transaction: %w", err)
		}
		if tx == nil {
			return shared.NewDomainError(shared.CodeStaleState, "Synthetic transaction is missing")
		}

		allocs, err := s.allocRepo.FindActiveByTransaction(ctx, tenantID, tx.ID)
		if err != nil {
			return fmt.Errorf("failed to load allocations: %w", err)
		}
		for _, alloc := range allocs {
			voucher, err := s.voucherRepo.FindByIDForTenant(ctx, tenantID, alloc.VoucherID)
			if err != nil {
				return fmt.Errorf("failed to load voucher: %w", err)
			}
			if voucher == nil {
				return shared.NewDomainError(shared.CodeStaleState, "Voucher is missing")
			}
			if err := domainSvc.ReverseAllocationRecord(alloc, tx, voucher, reason); err != nil {
				return err
			}
			if err := s.voucherRepo.SaveWithLock(ctx, voucher); err != nil {
				return err
			}
			if err := s.allocRepo.SaveWithLock(ctx, alloc); err != nil {
				return err
			}
			*events = append(*events, collectEvents(actorID, voucher)...)
			*events = append(*events, collectEvents(actorID, alloc)...)
		}

		if err := tx.SetModeration(settlement.ModerationCancelled); err != nil {
			return err
		}
		if err := s.txRepo.SaveWithLock(ctx, tx); err != nil {
			return err
		}
		*events = append(*events, collectEvents(actorID, tx)...)
	}
	return nil
}

// GetNetting returns a single netting record
func (s *NettingService) GetNetting(ctx context.Context, tenantID, id uuid.UUID) (*settlement.NettingRecord, error) {
	record, err := s.nettingRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load netting record: %w", err)
	}
	if record == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Netting record not found")
	}
	return record, nil
}

// ListNettings returns netting records matching the filter
func (s *NettingService) ListNettings(ctx context.Context, tenantID uuid.UUID, filter settlement.NettingFilter) (*shared.Paginated[*settlement.NettingRecord], error) {
	items, err := s.nettingRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list netting records: %w", err)
	}
	total, err := s.nettingRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count netting records: %w", err)
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

func (s *NettingService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	_ = s.publisher.Publish(ctx, events...)
}
