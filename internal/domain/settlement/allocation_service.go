package settlement

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/settleflow/backend/internal/domain/shared"
	"github.com/settleflow/backend/internal/domain/shared/valueobject"
)

// AllocationDomainService plans and applies allocations across a cash
// transaction and a set of vouchers. It works purely on in-memory aggregates;
// persistence and locking are the application layer's concern.
type AllocationDomainService struct {
	strategyFactory *AllocationStrategyFactory
}

// NewAllocationDomainService creates a new allocation domain service
func NewAllocationDomainService() *AllocationDomainService {
	return &AllocationDomainService{
		strategyFactory: NewAllocationStrategyFactory(),
	}
}

// BuildTargets converts open vouchers into allocation targets, skipping
// vouchers on the wrong side, already settled, or locked by moderation.
func (s *AllocationDomainService) BuildTargets(tx *CashTransaction, vouchers []*Voucher) []AllocationTarget {
	targets := make([]AllocationTarget, 0, len(vouchers))
	for _, v := range vouchers {
		if v.Side != tx.Type.TargetSide() {
			continue
		}
		if !v.CanMutate() || !v.IsOpen() {
			continue
		}
		targets = append(targets, AllocationTarget{
			VoucherID:     v.ID,
			VoucherNumber: v.VoucherNumber,
			TradeDate:     v.TradeDate,
			Balance:       v.Balance(),
		})
	}
	return targets
}

// PlanFIFO plans allocations for the transaction's unallocated amount
// against the given vouchers in FIFO order.
func (s *AllocationDomainService) PlanFIFO(tx *CashTransaction, vouchers []*Voucher) (*AllocationPlan, error) {
	if err := s.checkTransaction(tx); err != nil {
		return nil, err
	}

	targets := s.BuildTargets(tx, vouchers)
	if len(targets) == 0 {
		return nil, shared.NewDomainError(shared.CodeInsufficientTargets,
			fmt.Sprintf("No open vouchers available for transaction %s", tx.ID))
	}

	strategy := s.strategyFactory.CreateFIFOStrategy()
	return strategy.Plan(tx.GetUnallocatedMoney(), targets)
}

// PlanManual plans the caller-specified pairings against the given vouchers.
// Every request must fit exactly or the plan fails.
func (s *AllocationDomainService) PlanManual(tx *CashTransaction, vouchers []*Voucher, requests []ManualAllocationRequest) (*AllocationPlan, error) {
	if err := s.checkTransaction(tx); err != nil {
		return nil, err
	}

	targets := s.BuildTargets(tx, vouchers)
	strategy := s.strategyFactory.CreateManualStrategy(requests)
	return strategy.Plan(tx.GetUnallocatedMoney(), targets)
}

// Apply mutates the transaction and vouchers per the plan and returns the
// allocation records to persist. The voucher slice must contain every voucher
// the plan references.
func (s *AllocationDomainService) Apply(tx *CashTransaction, vouchers []*Voucher, plan *AllocationPlan, method AllocationMethod) ([]*Allocation, error) {
	voucherMap := make(map[uuid.UUID]*Voucher, len(vouchers))
	for _, v := range vouchers {
		voucherMap[v.ID] = v
	}

	records := make([]*Allocation, 0, len(plan.Allocations))
	for _, planned := range plan.Allocations {
		voucher, ok := voucherMap[planned.VoucherID]
		if !ok {
			return nil, shared.NewDomainError(shared.CodeNotFound,
				fmt.Sprintf("Voucher %s from the plan is not loaded", planned.VoucherID))
		}

		amount := valueobject.NewMoneyCNY(planned.Amount)
		if err := voucher.ApplyAllocation(amount); err != nil {
			return nil, err
		}
		if err := tx.ApplyAllocation(amount); err != nil {
			return nil, err
		}

		record, err := NewAllocation(tx.TenantID, tx.ID, voucher.ID, amount, method)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

// ReverseAllocationRecord reverses an allocation and restores the balances on
// both sides. The transaction and voucher must be the ones the record links.
func (s *AllocationDomainService) ReverseAllocationRecord(alloc *Allocation, tx *CashTransaction, voucher *Voucher, reason string) error {
	if alloc.TransactionID != tx.ID {
		return shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("Allocation %s does not belong to transaction %s", alloc.ID, tx.ID))
	}
	if alloc.VoucherID != voucher.ID {
		return shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("Allocation %s does not belong to voucher %s", alloc.ID, voucher.ID))
	}

	if err := alloc.Reverse(reason); err != nil {
		return err
	}

	amount := valueobject.NewMoneyCNY(alloc.Amount)
	if err := voucher.ReverseAllocation(amount); err != nil {
		return err
	}
	if err := tx.ReverseAllocation(amount); err != nil {
		return err
	}

	return nil
}

func (s *AllocationDomainService) checkTransaction(tx *CashTransaction) error {
	if !tx.CanMutate() {
		return shared.NewDomainError(shared.CodeModerationLocked,
			fmt.Sprintf("Transaction %s is %s and cannot be allocated", tx.ID, tx.Moderation))
	}
	if !tx.IsResolved() {
		return shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("Transaction %s has no resolved counterparty", tx.ID))
	}
	if tx.Unallocated().LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("Transaction %s has no unallocated amount", tx.ID))
	}
	return nil
}
