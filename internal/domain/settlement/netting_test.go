package settlement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleflow/backend/internal/domain/shared"
)

func makeNettingLine(number string, side VoucherSide, amount float64) NettingLine {
	return NettingLine{
		VoucherID:      uuid.New(),
		VoucherNumber:  number,
		Side:           side,
		Amount:         decimal.NewFromFloat(amount),
		VoucherVersion: 1,
	}
}

var testNettingDate = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

func createTestNettingDraft(t *testing.T) *NettingRecord {
	record, err := NewNettingDraft(
		uuid.New(),
		uuid.New(),
		"Acme Trading",
		testNettingDate,
		NettingLines{
			makeNettingLine("SV-1", SideSales, 300.00),
			makeNettingLine("SV-2", SideSales, 200.00),
			makeNettingLine("PV-1", SidePurchase, 500.00),
		},
		"",
	)
	require.NoError(t, err)
	return record
}

// ============================================
// NewNettingDraft Tests
// ============================================

func TestNewNettingDraft_Balanced(t *testing.T) {
	record := createTestNettingDraft(t)

	assert.Equal(t, NettingStatusDraft, record.Status)
	assert.True(t, record.NettedAmount.Equal(decimal.NewFromFloat(500.00)))
	assert.Len(t, record.SalesLines(), 2)
	assert.Len(t, record.PurchaseLines(), 1)
	assert.True(t, record.SalesTotal().Equal(record.PurchaseTotal()))
}

func TestNewNettingDraft_SetsNettingDate(t *testing.T) {
	record := createTestNettingDraft(t)

	assert.True(t, record.NettingDate.Equal(testNettingDate))
}

func TestNewNettingDraft_ZeroDateFails(t *testing.T) {
	_, err := NewNettingDraft(
		uuid.New(),
		uuid.New(),
		"Acme Trading",
		time.Time{},
		NettingLines{
			makeNettingLine("SV-1", SideSales, 500.00),
			makeNettingLine("PV-1", SidePurchase, 500.00),
		},
		"",
	)
	require.Error(t, err)
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
}

func TestNewNettingDraft_Unbalanced(t *testing.T) {
	_, err := NewNettingDraft(
		uuid.New(),
		uuid.New(),
		"Acme Trading",
		testNettingDate,
		NettingLines{
			makeNettingLine("SV-1", SideSales, 500.00),
			makeNettingLine("PV-1", SidePurchase, 480.00),
		},
		"",
	)
	require.Error(t, err)
	assert.Equal(t, shared.CodeUnbalancedNetting, shared.CodeOf(err))
}

func TestNewNettingDraft_OneSidedFails(t *testing.T) {
	_, err := NewNettingDraft(
		uuid.New(),
		uuid.New(),
		"Acme Trading",
		testNettingDate,
		NettingLines{
			makeNettingLine("SV-1", SideSales, 300.00),
			makeNettingLine("SV-2", SideSales, 300.00),
		},
		"",
	)
	require.Error(t, err)
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
}

func TestNewNettingDraft_DuplicateVoucherFails(t *testing.T) {
	line := makeNettingLine("SV-1", SideSales, 300.00)
	dup := line
	dup.Side = SidePurchase

	_, err := NewNettingDraft(uuid.New(), uuid.New(), "Acme", testNettingDate, NettingLines{line, dup}, "")
	require.Error(t, err)
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
}

func TestNewNettingDraft_NonPositiveLineFails(t *testing.T) {
	bad := makeNettingLine("SV-1", SideSales, 0)

	_, err := NewNettingDraft(uuid.New(), uuid.New(), "Acme", testNettingDate, NettingLines{
		bad,
		makeNettingLine("PV-1", SidePurchase, 100.00),
	}, "")
	require.Error(t, err)
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
}

// ============================================
// Transition Tests
// ============================================

func TestNettingRecord_MarkConfirmed(t *testing.T) {
	record := createTestNettingDraft(t)
	depositID := uuid.New()
	withdrawalID := uuid.New()

	require.NoError(t, record.MarkConfirmed(depositID, withdrawalID))
	assert.Equal(t, NettingStatusConfirmed, record.Status)
	assert.Equal(t, depositID, *record.DepositTransactionID)
	assert.Equal(t, withdrawalID, *record.WithdrawalTransactionID)
	assert.NotNil(t, record.ConfirmedAt)
}

func TestNettingRecord_ConfirmTwiceFails(t *testing.T) {
	record := createTestNettingDraft(t)
	require.NoError(t, record.MarkConfirmed(uuid.New(), uuid.New()))

	err := record.MarkConfirmed(uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, shared.CodeIllegalTransition, shared.CodeOf(err))
}

func TestNettingRecord_CancelDraft(t *testing.T) {
	record := createTestNettingDraft(t)

	require.NoError(t, record.MarkCancelled("entered in error"))
	assert.Equal(t, NettingStatusCancelled, record.Status)
	assert.Equal(t, "entered in error", record.Remark)
	assert.NotNil(t, record.CancelledAt)
}

func TestNettingRecord_CancelConfirmed(t *testing.T) {
	record := createTestNettingDraft(t)
	require.NoError(t, record.MarkConfirmed(uuid.New(), uuid.New()))

	require.NoError(t, record.MarkCancelled(""))
	assert.Equal(t, NettingStatusCancelled, record.Status)
}

func TestNettingRecord_CancelTwiceFails(t *testing.T) {
	record := createTestNettingDraft(t)
	require.NoError(t, record.MarkCancelled(""))

	err := record.MarkCancelled("")
	require.Error(t, err)
	assert.Equal(t, shared.CodeIllegalTransition, shared.CodeOf(err))
}

// ============================================
// JSONB Round Trip
// ============================================

func TestNettingLines_ValueScan(t *testing.T) {
	record := createTestNettingDraft(t)

	raw, err := record.Lines.Value()
	require.NoError(t, err)

	var scanned NettingLines
	require.NoError(t, scanned.Scan(raw))

	require.Len(t, scanned, 3)
	assert.Equal(t, record.Lines[0].VoucherID, scanned[0].VoucherID)
	assert.True(t, record.Lines[0].Amount.Equal(scanned[0].Amount))
}
