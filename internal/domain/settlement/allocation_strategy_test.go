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

func makeTarget(number string, date string, balance float64) AllocationTarget {
	d, _ := time.Parse("2006-01-02", date)
	return AllocationTarget{
		VoucherID:     uuid.New(),
		VoucherNumber: number,
		TradeDate:     d,
		Balance:       decimal.NewFromFloat(balance),
	}
}

// ============================================
// FIFO Strategy Tests
// ============================================

func TestFIFOStrategy_OldestFirst(t *testing.T) {
	v1 := makeTarget("V1", "2024-01-01", 700.00)
	v2 := makeTarget("V2", "2024-01-05", 400.00)
	strategy := NewFIFOAllocationStrategy()

	// Deliberately pass newest first, planning must reorder
	plan, err := strategy.Plan(valueobject.NewMoneyCNYFromFloat(1000.00), []AllocationTarget{v2, v1})
	require.NoError(t, err)

	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, v1.VoucherID, plan.Allocations[0].VoucherID)
	assert.True(t, plan.Allocations[0].Amount.Equal(decimal.NewFromFloat(700.00)))
	assert.Equal(t, v2.VoucherID, plan.Allocations[1].VoucherID)
	assert.True(t, plan.Allocations[1].Amount.Equal(decimal.NewFromFloat(300.00)))

	assert.True(t, plan.FullyAllocated)
	assert.True(t, plan.RemainingAmount.IsZero())
	assert.ElementsMatch(t, []uuid.UUID{v1.VoucherID}, plan.VouchersSettled)
	assert.ElementsMatch(t, []uuid.UUID{v2.VoucherID}, plan.VouchersPartial)
}

func TestFIFOStrategy_SameDateBreaksTiesByNumber(t *testing.T) {
	a := makeTarget("V-002", "2024-01-01", 500.00)
	b := makeTarget("V-001", "2024-01-01", 500.00)
	strategy := NewFIFOAllocationStrategy()

	plan, err := strategy.Plan(valueobject.NewMoneyCNYFromFloat(600.00), []AllocationTarget{a, b})
	require.NoError(t, err)

	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, "V-001", plan.Allocations[0].VoucherNumber)
	assert.True(t, plan.Allocations[0].Amount.Equal(decimal.NewFromFloat(500.00)))
	assert.Equal(t, "V-002", plan.Allocations[1].VoucherNumber)
	assert.True(t, plan.Allocations[1].Amount.Equal(decimal.NewFromFloat(100.00)))
}

func TestFIFOStrategy_LeavesRemainderWhenTargetsExhausted(t *testing.T) {
	v := makeTarget("V1", "2024-01-01", 300.00)
	strategy := NewFIFOAllocationStrategy()

	plan, err := strategy.Plan(valueobject.NewMoneyCNYFromFloat(1000.00), []AllocationTarget{v})
	require.NoError(t, err)

	assert.False(t, plan.FullyAllocated)
	assert.True(t, plan.RemainingAmount.Equal(decimal.NewFromFloat(700.00)))
	assert.True(t, plan.TotalAllocated.Equal(decimal.NewFromFloat(300.00)))
}

func TestFIFOStrategy_NoTargets(t *testing.T) {
	strategy := NewFIFOAllocationStrategy()

	_, err := strategy.Plan(valueobject.NewMoneyCNYFromFloat(100.00), nil)
	require.Error(t, err)
	assert.Equal(t, shared.CodeInsufficientTargets, shared.CodeOf(err))
}

func TestFIFOStrategy_Deterministic(t *testing.T) {
	targets := []AllocationTarget{
		makeTarget("V3", "2024-01-03", 100.00),
		makeTarget("V1", "2024-01-01", 200.00),
		makeTarget("V2", "2024-01-02", 300.00),
	}
	strategy := NewFIFOAllocationStrategy()

	first, err := strategy.Plan(valueobject.NewMoneyCNYFromFloat(450.00), targets)
	require.NoError(t, err)
	second, err := strategy.Plan(valueobject.NewMoneyCNYFromFloat(450.00), targets)
	require.NoError(t, err)

	require.Equal(t, len(first.Allocations), len(second.Allocations))
	for i := range first.Allocations {
		assert.Equal(t, first.Allocations[i].VoucherID, second.Allocations[i].VoucherID)
		assert.True(t, first.Allocations[i].Amount.Equal(second.Allocations[i].Amount))
	}
}

// ============================================
// Manual Strategy Tests
// ============================================

func TestManualStrategy_ExactAmounts(t *testing.T) {
	v1 := makeTarget("V1", "2024-01-01", 700.00)
	v2 := makeTarget("V2", "2024-01-05", 400.00)
	strategy := NewManualAllocationStrategy([]ManualAllocationRequest{
		{VoucherID: v2.VoucherID, Amount: decimal.NewFromFloat(150.00)},
		{VoucherID: v1.VoucherID, Amount: decimal.NewFromFloat(250.00)},
	})

	plan, err := strategy.Plan(valueobject.NewMoneyCNYFromFloat(1000.00), []AllocationTarget{v1, v2})
	require.NoError(t, err)

	// Manual keeps the caller's order
	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, v2.VoucherID, plan.Allocations[0].VoucherID)
	assert.True(t, plan.TotalAllocated.Equal(decimal.NewFromFloat(400.00)))
	assert.True(t, plan.RemainingAmount.Equal(decimal.NewFromFloat(600.00)))
}

func TestManualStrategy_OverVoucherBalanceFails(t *testing.T) {
	v := makeTarget("V1", "2024-01-01", 300.00)
	strategy := NewManualAllocationStrategy([]ManualAllocationRequest{
		{VoucherID: v.VoucherID, Amount: decimal.NewFromFloat(300.01)},
	})

	_, err := strategy.Plan(valueobject.NewMoneyCNYFromFloat(1000.00), []AllocationTarget{v})
	require.Error(t, err)
	assert.Equal(t, shared.CodeInsufficientBalance, shared.CodeOf(err))
}

func TestManualStrategy_OverTransactionAmountFails(t *testing.T) {
	v := makeTarget("V1", "2024-01-01", 700.00)
	strategy := NewManualAllocationStrategy([]ManualAllocationRequest{
		{VoucherID: v.VoucherID, Amount: decimal.NewFromFloat(600.00)},
	})

	_, err := strategy.Plan(valueobject.NewMoneyCNYFromFloat(500.00), []AllocationTarget{v})
	require.Error(t, err)
	assert.Equal(t, shared.CodeInsufficientBalance, shared.CodeOf(err))
}

func TestManualStrategy_UnknownVoucherFails(t *testing.T) {
	v := makeTarget("V1", "2024-01-01", 700.00)
	strategy := NewManualAllocationStrategy([]ManualAllocationRequest{
		{VoucherID: uuid.New(), Amount: decimal.NewFromFloat(100.00)},
	})

	_, err := strategy.Plan(valueobject.NewMoneyCNYFromFloat(500.00), []AllocationTarget{v})
	require.Error(t, err)
	assert.Equal(t, shared.CodeNotFound, shared.CodeOf(err))
}

func TestManualStrategy_DuplicateVoucherFails(t *testing.T) {
	v := makeTarget("V1", "2024-01-01", 700.00)
	strategy := NewManualAllocationStrategy([]ManualAllocationRequest{
		{VoucherID: v.VoucherID, Amount: decimal.NewFromFloat(100.00)},
		{VoucherID: v.VoucherID, Amount: decimal.NewFromFloat(100.00)},
	})

	_, err := strategy.Plan(valueobject.NewMoneyCNYFromFloat(500.00), []AllocationTarget{v})
	require.Error(t, err)
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
}

func TestManualStrategy_ZeroAmountFails(t *testing.T) {
	v := makeTarget("V1", "2024-01-01", 700.00)
	strategy := NewManualAllocationStrategy([]ManualAllocationRequest{
		{VoucherID: v.VoucherID, Amount: decimal.Zero},
	})

	_, err := strategy.Plan(valueobject.NewMoneyCNYFromFloat(500.00), []AllocationTarget{v})
	require.Error(t, err)
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
}

// ============================================
// Factory Tests
// ============================================

func TestAllocationStrategyFactory_GetStrategy(t *testing.T) {
	factory := NewAllocationStrategyFactory()

	fifo, err := factory.GetStrategy(AllocationStrategyTypeFIFO, nil)
	require.NoError(t, err)
	assert.Equal(t, AllocationStrategyTypeFIFO, fifo.StrategyType())

	manual, err := factory.GetStrategy(AllocationStrategyTypeManual, []ManualAllocationRequest{
		{VoucherID: uuid.New(), Amount: decimal.NewFromFloat(10.00)},
	})
	require.NoError(t, err)
	assert.Equal(t, AllocationStrategyTypeManual, manual.StrategyType())

	_, err = factory.GetStrategy(AllocationStrategyTypeManual, nil)
	assert.Error(t, err)

	_, err = factory.GetStrategy(AllocationStrategyType("RANDOM"), nil)
	assert.Error(t, err)
}
