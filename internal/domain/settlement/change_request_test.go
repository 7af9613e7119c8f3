package settlement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleflow/backend/internal/domain/shared"
)

var testRequesterID = uuid.New()

func createTestChangeRequest(t *testing.T) (*Voucher, *VoucherChangeRequest) {
	v := createTestVoucher(t)
	newData := v.SnapshotRevision()
	newData.TotalAmount = decimal.NewFromFloat(1500.00)
	newData.Remark = "corrected total"

	req, err := NewVoucherChangeRequest(v.TenantID, v, newData, "typo in entry", &testRequesterID)
	require.NoError(t, err)
	return v, req
}

// ============================================
// NewVoucherChangeRequest Tests
// ============================================

func TestNewVoucherChangeRequest_Success(t *testing.T) {
	v, req := createTestChangeRequest(t)

	assert.Equal(t, ChangeRequestStatusPending, req.Status)
	assert.Equal(t, v.ID, req.VoucherID)
	assert.Equal(t, v.Version, req.VoucherVersion)
	require.NotNil(t, req.Requester)
	assert.Equal(t, testRequesterID, *req.Requester)
	assert.Nil(t, req.Approver)
	assert.True(t, req.IsPending())
}

func TestNewVoucherChangeRequest_NoChangesFails(t *testing.T) {
	v := createTestVoucher(t)

	_, err := NewVoucherChangeRequest(v.TenantID, v, v.SnapshotRevision(), "nothing", nil)
	require.Error(t, err)
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
}

// ============================================
// Diff Tests
// ============================================

func TestVoucherChangeRequest_Diff(t *testing.T) {
	_, req := createTestChangeRequest(t)

	diff := req.Diff()
	require.Len(t, diff, 2)

	fields := make(map[string]FieldChange, len(diff))
	for _, c := range diff {
		fields[c.Field] = c
	}
	assert.Equal(t, "1000", fields["total_amount"].Old)
	assert.Equal(t, "1500", fields["total_amount"].New)
	assert.Equal(t, "corrected total", fields["remark"].New)
}

// ============================================
// Transition Tests
// ============================================

func TestVoucherChangeRequest_Approve(t *testing.T) {
	_, req := createTestChangeRequest(t)

	approver := uuid.New()
	require.NoError(t, req.Approve("looks right", &approver))
	assert.Equal(t, ChangeRequestStatusApproved, req.Status)
	assert.Equal(t, "looks right", req.DecisionNote)
	require.NotNil(t, req.Approver)
	assert.Equal(t, approver, *req.Approver)
	assert.NotNil(t, req.DecidedAt)
}

func TestVoucherChangeRequest_Reject(t *testing.T) {
	_, req := createTestChangeRequest(t)

	approver := uuid.New()
	require.NoError(t, req.Reject("needs supporting docs", &approver))
	assert.Equal(t, ChangeRequestStatusRejected, req.Status)
	require.NotNil(t, req.Approver)
	assert.Equal(t, approver, *req.Approver)
}

func TestVoucherChangeRequest_DecideTwiceFails(t *testing.T) {
	_, req := createTestChangeRequest(t)
	require.NoError(t, req.Approve("", nil))

	err := req.Reject("", nil)
	require.Error(t, err)
	assert.Equal(t, shared.CodeIllegalTransition, shared.CodeOf(err))

	err = req.Approve("", nil)
	require.Error(t, err)
	assert.Equal(t, shared.CodeIllegalTransition, shared.CodeOf(err))
}

func TestVoucherChangeRequest_ApprovedRevisionApplies(t *testing.T) {
	v, req := createTestChangeRequest(t)

	require.NoError(t, req.Approve("", nil))
	require.NoError(t, v.ApplyRevision(req.NewRevision()))
	assert.True(t, v.TotalAmount.Equal(decimal.NewFromFloat(1500.00)))
	assert.Equal(t, "corrected total", v.Remark)
}
