package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/settleflow/backend/internal/domain/partner"
	"github.com/settleflow/backend/internal/domain/settlement"
	"github.com/settleflow/backend/internal/domain/shared"
	"github.com/settleflow/backend/internal/domain/shared/valueobject"
	"github.com/settleflow/backend/internal/infrastructure/telemetry"
)

// VoucherService manages voucher lifecycle outside of allocation
type VoucherService struct {
	voucherRepo      settlement.VoucherRepository
	counterpartyRepo partner.CounterpartyRepository
	publisher        shared.EventPublisher
}

// NewVoucherService creates a new VoucherService
func NewVoucherService(
	voucherRepo settlement.VoucherRepository,
	counterpartyRepo partner.CounterpartyRepository,
	publisher shared.EventPublisher,
) *VoucherService {
	return &VoucherService{
		voucherRepo:      voucherRepo,
		counterpartyRepo: counterpartyRepo,
		publisher:        publisher,
	}
}

// CreateVoucherRequest represents a request to record a voucher
type CreateVoucherRequest struct {
	TenantID       uuid.UUID
	CounterpartyID uuid.UUID
	Side           settlement.VoucherSide
	TradeDate      time.Time
	VoucherNumber  string
	TotalAmount    decimal.Decimal
	Remark         string
	ActorID        *uuid.UUID
}

// CreateVoucher records a new voucher. The voucher number must be unique
// within the tenant.
func (s *VoucherService) CreateVoucher(ctx context.Context, req CreateVoucherRequest) (*settlement.Voucher, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "voucher", "create")
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

	existing, err := s.voucherRepo.FindByNumberForTenant(ctx, req.TenantID, req.VoucherNumber)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to check voucher number: %w", err)
	}
	if existing != nil {
		err := shared.NewDomainError(shared.CodeAlreadyExists,
			fmt.Sprintf("Voucher number %s already exists", req.VoucherNumber))
		telemetry.RecordError(span, err)
		return nil, err
	}

	voucher, err := settlement.NewVoucher(
		req.TenantID,
		cp.ID,
		cp.Name,
		req.Side,
		req.TradeDate,
		req.VoucherNumber,
		valueobject.NewMoneyCNY(req.TotalAmount),
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	voucher.Remark = req.Remark

	if err := s.voucherRepo.Save(ctx, voucher); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save voucher: %w", err)
	}

	s.publish(ctx, collectEvents(req.ActorID, voucher))
	return voucher, nil
}

// GetVoucher returns a single voucher
func (s *VoucherService) GetVoucher(ctx context.Context, tenantID, id uuid.UUID) (*settlement.Voucher, error) {
	voucher, err := s.voucherRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load voucher: %w", err)
	}
	if voucher == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Voucher not found")
	}
	return voucher, nil
}

// ListVouchers returns vouchers matching the filter
func (s *VoucherService) ListVouchers(ctx context.Context, tenantID uuid.UUID, filter settlement.VoucherFilter) (*shared.Paginated[*settlement.Voucher], error) {
	items, err := s.voucherRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	total, err := s.voucherRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count vouchers: %w", err)
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// SetModeration applies a moderation override to a voucher
func (s *VoucherService) SetModeration(ctx context.Context, tenantID, id uuid.UUID, state settlement.ModerationState, actorID *uuid.UUID) (*settlement.Voucher, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "voucher", "set_moderation")
	defer span.End()

	voucher, err := s.GetVoucher(ctx, tenantID, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := voucher.SetModeration(state); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.voucherRepo.SaveWithLock(ctx, voucher); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, collectEvents(actorID, voucher))
	return voucher, nil
}

// CounterpartySummary aggregates open balances for one counterparty
type CounterpartySummary struct {
	CounterpartyID    uuid.UUID       `json:"counterparty_id"`
	OpenSalesTotal    decimal.Decimal `json:"open_sales_total"`
	OpenSalesCount    int             `json:"open_sales_count"`
	OpenPurchaseTotal decimal.Decimal `json:"open_purchase_total"`
	OpenPurchaseCount int             `json:"open_purchase_count"`
	NetPosition       decimal.Decimal `json:"net_position"`
	NettableAmount    decimal.Decimal `json:"nettable_amount"`
}

// GetCounterpartySummary computes open balances on both sides for one
// counterparty. The nettable amount is the overlap of the two sides.
func (s *VoucherService) GetCounterpartySummary(ctx context.Context, tenantID, counterpartyID uuid.UUID) (*CounterpartySummary, error) {
	sales, err := s.voucherRepo.FindOpenByCounterpartyAndSide(ctx, tenantID, counterpartyID, settlement.SideSales)
	if err != nil {
		return nil, fmt.Errorf("failed to load open sales vouchers: %w", err)
	}
	purchases, err := s.voucherRepo.FindOpenByCounterpartyAndSide(ctx, tenantID, counterpartyID, settlement.SidePurchase)
	if err != nil {
		return nil, fmt.Errorf("failed to load open purchase vouchers: %w", err)
	}

	summary := &CounterpartySummary{
		CounterpartyID:    counterpartyID,
		OpenSalesTotal:    decimal.Zero,
		OpenPurchaseTotal: decimal.Zero,
	}
	for _, v := range sales {
		summary.OpenSalesTotal = summary.OpenSalesTotal.Add(v.Balance())
		summary.OpenSalesCount++
	}
	for _, v := range purchases {
		summary.OpenPurchaseTotal = summary.OpenPurchaseTotal.Add(v.Balance())
		summary.OpenPurchaseCount++
	}
	summary.NetPosition = summary.OpenSalesTotal.Sub(summary.OpenPurchaseTotal)
	summary.NettableAmount = decimal.Min(summary.OpenSalesTotal, summary.OpenPurchaseTotal)
	return summary, nil
}

func (s *VoucherService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	_ = s.publisher.Publish(ctx, events...)
}
