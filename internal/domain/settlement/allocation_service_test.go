package settlement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleflow/backend/internal/domain/shared"
	"github.com/settleflow/backend/internal/domain/shared/valueobject"
)

func makeVoucher(t *testing.T, tenantID, counterpartyID uuid.UUID, side VoucherSide, number, date string, total float64) *Voucher {
	d, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	v, err := NewVoucher(tenantID, counterpartyID, "Acme Trading", side, d, number, valueobject.NewMoneyCNYFromFloat(total))
	require.NoError(t, err)
	return v
}

func makeDeposit(t *testing.T, tenantID, counterpartyID uuid.UUID, amount float64) *CashTransaction {
	tx, err := NewCashTransaction(
		tenantID,
		&counterpartyID,
		"Acme Trading",
		"Acme Trading",
		TransactionTypeDeposit,
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		valueobject.NewMoneyCNYFromFloat(amount),
		SourceManual,
	)
	require.NoError(t, err)
	return tx
}

// ============================================
// PlanFIFO and Apply Tests
// ============================================

func TestAllocationDomainService_FIFOEndToEnd(t *testing.T) {
	tenantID := uuid.New()
	counterpartyID := uuid.New()
	svc := NewAllocationDomainService()

	v1 := makeVoucher(t, tenantID, counterpartyID, SideSales, "V1", "2024-01-01", 700.00)
	v2 := makeVoucher(t, tenantID, counterpartyID, SideSales, "V2", "2024-01-05", 400.00)
	tx := makeDeposit(t, tenantID, counterpartyID, 1000.00)
	vouchers := []*Voucher{v2, v1}

	plan, err := svc.PlanFIFO(tx, vouchers)
	require.NoError(t, err)

	records, err := svc.Apply(tx, vouchers, plan, AllocationMethodAuto)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.True(t, v1.Balance().IsZero())
	assert.True(t, v2.Balance().Equal(decimal.NewFromFloat(100.00)))
	assert.True(t, tx.IsFullyAllocated())
	assert.Equal(t, TransactionStatusAllocated, tx.Status())

	for _, r := range records {
		assert.Equal(t, AllocationStatusActive, r.Status)
		assert.Equal(t, AllocationMethodAuto, r.Method)
		assert.Equal(t, tx.ID, r.TransactionID)
	}
}

func TestAllocationDomainService_SkipsWrongSideAndModerated(t *testing.T) {
	tenantID := uuid.New()
	counterpartyID := uuid.New()
	svc := NewAllocationDomainService()

	sales := makeVoucher(t, tenantID, counterpartyID, SideSales, "SV-1", "2024-01-01", 500.00)
	purchase := makeVoucher(t, tenantID, counterpartyID, SidePurchase, "PV-1", "2024-01-01", 500.00)
	held := makeVoucher(t, tenantID, counterpartyID, SideSales, "SV-2", "2024-01-02", 500.00)
	require.NoError(t, held.SetModeration(ModerationOnHold))

	tx := makeDeposit(t, tenantID, counterpartyID, 300.00)
	targets := svc.BuildTargets(tx, []*Voucher{sales, purchase, held})

	require.Len(t, targets, 1)
	assert.Equal(t, sales.ID, targets[0].VoucherID)
}

func TestAllocationDomainService_NoTargets(t *testing.T) {
	tenantID := uuid.New()
	counterpartyID := uuid.New()
	svc := NewAllocationDomainService()

	purchase := makeVoucher(t, tenantID, counterpartyID, SidePurchase, "PV-1", "2024-01-01", 500.00)
	tx := makeDeposit(t, tenantID, counterpartyID, 300.00)

	_, err := svc.PlanFIFO(tx, []*Voucher{purchase})
	require.Error(t, err)
	assert.Equal(t, shared.CodeInsufficientTargets, shared.CodeOf(err))
}

func TestAllocationDomainService_UnresolvedTransaction(t *testing.T) {
	svc := NewAllocationDomainService()
	tx := createUnresolvedDeposit(t, "ACME TRD CO")

	_, err := svc.PlanFIFO(tx, nil)
	require.Error(t, err)
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
}

func TestAllocationDomainService_ManualPlanApply(t *testing.T) {
	tenantID := uuid.New()
	counterpartyID := uuid.New()
	svc := NewAllocationDomainService()

	v1 := makeVoucher(t, tenantID, counterpartyID, SideSales, "V1", "2024-01-01", 700.00)
	v2 := makeVoucher(t, tenantID, counterpartyID, SideSales, "V2", "2024-01-05", 400.00)
	tx := makeDeposit(t, tenantID, counterpartyID, 1000.00)
	vouchers := []*Voucher{v1, v2}

	plan, err := svc.PlanManual(tx, vouchers, []ManualAllocationRequest{
		{VoucherID: v2.ID, Amount: decimal.NewFromFloat(400.00)},
	})
	require.NoError(t, err)

	_, err = svc.Apply(tx, vouchers, plan, AllocationMethodManual)
	require.NoError(t, err)

	assert.True(t, v2.Balance().IsZero())
	assert.True(t, v1.Balance().Equal(decimal.NewFromFloat(700.00)))
	assert.True(t, tx.Unallocated().Equal(decimal.NewFromFloat(600.00)))
}

// ============================================
// Reversal Tests
// ============================================

func TestAllocationDomainService_ReverseRestoresBalances(t *testing.T) {
	tenantID := uuid.New()
	counterpartyID := uuid.New()
	svc := NewAllocationDomainService()

	v := makeVoucher(t, tenantID, counterpartyID, SideSales, "V1", "2024-01-01", 700.00)
	tx := makeDeposit(t, tenantID, counterpartyID, 500.00)
	vouchers := []*Voucher{v}

	plan, err := svc.PlanFIFO(tx, vouchers)
	require.NoError(t, err)
	records, err := svc.Apply(tx, vouchers, plan, AllocationMethodAuto)
	require.NoError(t, err)
	require.Len(t, records, 1)

	alloc := records[0]
	require.NoError(t, svc.ReverseAllocationRecord(alloc, tx, v, "operator undo"))

	assert.Equal(t, AllocationStatusReversed, alloc.Status)
	assert.Equal(t, "operator undo", alloc.ReversalReason)
	assert.True(t, v.Balance().Equal(decimal.NewFromFloat(700.00)))
	assert.True(t, tx.Unallocated().Equal(decimal.NewFromFloat(500.00)))
}

func TestAllocationDomainService_ReverseTwiceFails(t *testing.T) {
	tenantID := uuid.New()
	counterpartyID := uuid.New()
	svc := NewAllocationDomainService()

	v := makeVoucher(t, tenantID, counterpartyID, SideSales, "V1", "2024-01-01", 700.00)
	tx := makeDeposit(t, tenantID, counterpartyID, 500.00)
	vouchers := []*Voucher{v}

	plan, err := svc.PlanFIFO(tx, vouchers)
	require.NoError(t, err)
	records, err := svc.Apply(tx, vouchers, plan, AllocationMethodAuto)
	require.NoError(t, err)

	require.NoError(t, svc.ReverseAllocationRecord(records[0], tx, v, ""))
	err = svc.ReverseAllocationRecord(records[0], tx, v, "")
	require.Error(t, err)
	assert.Equal(t, shared.CodeIllegalTransition, shared.CodeOf(err))
}

func TestAllocationDomainService_ReverseWrongAggregatesFails(t *testing.T) {
	tenantID := uuid.New()
	counterpartyID := uuid.New()
	svc := NewAllocationDomainService()

	v := makeVoucher(t, tenantID, counterpartyID, SideSales, "V1", "2024-01-01", 700.00)
	other := makeVoucher(t, tenantID, counterpartyID, SideSales, "V2", "2024-01-02", 700.00)
	tx := makeDeposit(t, tenantID, counterpartyID, 500.00)
	vouchers := []*Voucher{v}

	plan, err := svc.PlanFIFO(tx, vouchers)
	require.NoError(t, err)
	records, err := svc.Apply(tx, vouchers, plan, AllocationMethodAuto)
	require.NoError(t, err)

	err = svc.ReverseAllocationRecord(records[0], tx, other, "")
	require.Error(t, err)
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
}
