package settlement

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/settleflow/backend/internal/domain/shared"
	"github.com/settleflow/backend/internal/domain/shared/valueobject"
)

// AllocationStrategyType defines the type of allocation strategy
type AllocationStrategyType string

const (
	AllocationStrategyTypeFIFO   AllocationStrategyType = "FIFO"   // Oldest open voucher first
	AllocationStrategyTypeManual AllocationStrategyType = "MANUAL" // Caller-specified voucher amounts
)

// IsValid checks if the strategy type is valid
func (t AllocationStrategyType) IsValid() bool {
	switch t {
	case AllocationStrategyTypeFIFO, AllocationStrategyTypeManual:
		return true
	}
	return false
}

// String returns the string representation
func (t AllocationStrategyType) String() string {
	return string(t)
}

// AllocationTarget represents an open voucher eligible for allocation
type AllocationTarget struct {
	VoucherID     uuid.UUID       // ID of the voucher
	VoucherNumber string          // Voucher number for deterministic ordering
	TradeDate     time.Time       // Trade date for FIFO ordering
	Balance       decimal.Decimal // Amount still open
}

// PlannedAllocation represents a single planned pairing
type PlannedAllocation struct {
	VoucherID     uuid.UUID       // ID of the voucher
	VoucherNumber string          // Voucher number for display purposes
	Amount        decimal.Decimal // Amount to allocate
}

// AllocationPlan represents the complete result of an allocation strategy
type AllocationPlan struct {
	Allocations     []PlannedAllocation // Pairings to create, in order
	TotalAllocated  decimal.Decimal     // Total amount allocated
	RemainingAmount decimal.Decimal     // Amount left unallocated on the transaction
	FullyAllocated  bool                // True if the whole amount was placed
	VouchersSettled []uuid.UUID         // Vouchers the plan would close completely
	VouchersPartial []uuid.UUID         // Vouchers the plan would leave partially open
}

// AllocationStrategy is the interface for allocation planning strategies
type AllocationStrategy interface {
	// StrategyType returns the allocation strategy type
	StrategyType() AllocationStrategyType
	// Plan calculates how to spread the given amount across targets
	Plan(amount valueobject.Money, targets []AllocationTarget) (*AllocationPlan, error)
}

// sortTargetsFIFO orders targets by trade date ascending, voucher number as
// the tiebreaker, so planning is deterministic for equal dates.
func sortTargetsFIFO(targets []AllocationTarget) []AllocationTarget {
	sorted := make([]AllocationTarget, len(targets))
	copy(sorted, targets)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].TradeDate.Equal(sorted[j].TradeDate) {
			return sorted[i].TradeDate.Before(sorted[j].TradeDate)
		}
		return sorted[i].VoucherNumber < sorted[j].VoucherNumber
	})
	return sorted
}

// FIFOAllocationStrategy allocates to the oldest open vouchers first
type FIFOAllocationStrategy struct{}

// NewFIFOAllocationStrategy creates a new FIFO allocation strategy
func NewFIFOAllocationStrategy() *FIFOAllocationStrategy {
	return &FIFOAllocationStrategy{}
}

// StrategyType returns the allocation strategy type
func (s *FIFOAllocationStrategy) StrategyType() AllocationStrategyType {
	return AllocationStrategyTypeFIFO
}

// Plan spreads the amount across targets in FIFO order
func (s *FIFOAllocationStrategy) Plan(amount valueobject.Money, targets []AllocationTarget) (*AllocationPlan, error) {
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.CodeValidation, "Allocation amount must be positive")
	}
	if len(targets) == 0 {
		return nil, shared.NewDomainError(shared.CodeInsufficientTargets, "No open vouchers available for allocation")
	}

	sorted := sortTargetsFIFO(targets)

	allocations := make([]PlannedAllocation, 0)
	settled := make([]uuid.UUID, 0)
	partial := make([]uuid.UUID, 0)
	remaining := amount.Amount()
	totalAllocated := decimal.Zero

	for _, target := range sorted {
		if remaining.IsZero() {
			break
		}
		if target.Balance.LessThanOrEqual(decimal.Zero) {
			continue
		}

		allocAmount := decimal.Min(remaining, target.Balance)

		allocations = append(allocations, PlannedAllocation{
			VoucherID:     target.VoucherID,
			VoucherNumber: target.VoucherNumber,
			Amount:        allocAmount,
		})

		totalAllocated = totalAllocated.Add(allocAmount)
		remaining = remaining.Sub(allocAmount)

		if allocAmount.GreaterThanOrEqual(target.Balance) {
			settled = append(settled, target.VoucherID)
		} else {
			partial = append(partial, target.VoucherID)
		}
	}

	if totalAllocated.IsZero() {
		return nil, shared.NewDomainError(shared.CodeInsufficientTargets, "No open voucher balance available for allocation")
	}

	return &AllocationPlan{
		Allocations:     allocations,
		TotalAllocated:  totalAllocated,
		RemainingAmount: remaining,
		FullyAllocated:  remaining.IsZero(),
		VouchersSettled: settled,
		VouchersPartial: partial,
	}, nil
}

// ManualAllocationRequest represents a caller-specified pairing
type ManualAllocationRequest struct {
	VoucherID uuid.UUID       // ID of the voucher
	Amount    decimal.Decimal // Exact amount to allocate
}

// ManualAllocationStrategy allocates exact amounts to caller-specified
// vouchers. Unlike FIFO it never caps or skips: a request that does not fit
// fails the whole plan, so the caller always learns about the mistake.
type ManualAllocationStrategy struct {
	requests []ManualAllocationRequest
}

// NewManualAllocationStrategy creates a new manual allocation strategy
func NewManualAllocationStrategy(requests []ManualAllocationRequest) *ManualAllocationStrategy {
	return &ManualAllocationStrategy{requests: requests}
}

// StrategyType returns the allocation strategy type
func (s *ManualAllocationStrategy) StrategyType() AllocationStrategyType {
	return AllocationStrategyTypeManual
}

// GetRequests returns the configured manual allocation requests
func (s *ManualAllocationStrategy) GetRequests() []ManualAllocationRequest {
	return s.requests
}

// Plan validates every request against the targets and the available amount
func (s *ManualAllocationStrategy) Plan(amount valueobject.Money, targets []AllocationTarget) (*AllocationPlan, error) {
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.CodeValidation, "Allocation amount must be positive")
	}
	if len(s.requests) == 0 {
		return nil, shared.NewDomainError(shared.CodeValidation, "Manual allocation requires at least one pairing")
	}

	targetMap := make(map[uuid.UUID]*AllocationTarget, len(targets))
	for i := range targets {
		targetMap[targets[i].VoucherID] = &targets[i]
	}

	seen := make(map[uuid.UUID]bool, len(s.requests))
	allocations := make([]PlannedAllocation, 0, len(s.requests))
	settled := make([]uuid.UUID, 0)
	partial := make([]uuid.UUID, 0)
	remaining := amount.Amount()
	totalAllocated := decimal.Zero

	for _, req := range s.requests {
		if req.Amount.LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewDomainError(shared.CodeValidation,
				fmt.Sprintf("Allocation amount for voucher %s must be positive", req.VoucherID))
		}
		if seen[req.VoucherID] {
			return nil, shared.NewDomainError(shared.CodeValidation,
				fmt.Sprintf("Voucher %s appears more than once in the request", req.VoucherID))
		}
		seen[req.VoucherID] = true

		target, exists := targetMap[req.VoucherID]
		if !exists {
			return nil, shared.NewDomainError(shared.CodeNotFound,
				fmt.Sprintf("Voucher %s is not eligible for this allocation", req.VoucherID))
		}
		if req.Amount.GreaterThan(target.Balance) {
			return nil, shared.NewDomainError(shared.CodeInsufficientBalance,
				fmt.Sprintf("Requested %s exceeds voucher %s balance %s", req.Amount, target.VoucherNumber, target.Balance))
		}
		if req.Amount.GreaterThan(remaining) {
			return nil, shared.NewDomainError(shared.CodeInsufficientBalance,
				fmt.Sprintf("Requested %s exceeds transaction unallocated amount %s", req.Amount, remaining))
		}

		allocations = append(allocations, PlannedAllocation{
			VoucherID:     target.VoucherID,
			VoucherNumber: target.VoucherNumber,
			Amount:        req.Amount,
		})

		totalAllocated = totalAllocated.Add(req.Amount)
		remaining = remaining.Sub(req.Amount)

		if req.Amount.Equal(target.Balance) {
			settled = append(settled, target.VoucherID)
		} else {
			partial = append(partial, target.VoucherID)
		}
	}

	return &AllocationPlan{
		Allocations:     allocations,
		TotalAllocated:  totalAllocated,
		RemainingAmount: remaining,
		FullyAllocated:  remaining.IsZero(),
		VouchersSettled: settled,
		VouchersPartial: partial,
	}, nil
}

// AllocationStrategyFactory creates allocation strategies
type AllocationStrategyFactory struct{}

// NewAllocationStrategyFactory creates a new factory
func NewAllocationStrategyFactory() *AllocationStrategyFactory {
	return &AllocationStrategyFactory{}
}

// CreateFIFOStrategy creates a FIFO allocation strategy
func (f *AllocationStrategyFactory) CreateFIFOStrategy() *FIFOAllocationStrategy {
	return NewFIFOAllocationStrategy()
}

// CreateManualStrategy creates a manual allocation strategy with specified requests
func (f *AllocationStrategyFactory) CreateManualStrategy(requests []ManualAllocationRequest) *ManualAllocationStrategy {
	return NewManualAllocationStrategy(requests)
}

// GetStrategy returns a strategy by type
func (f *AllocationStrategyFactory) GetStrategy(strategyType AllocationStrategyType, requests []ManualAllocationRequest) (AllocationStrategy, error) {
	switch strategyType {
	case AllocationStrategyTypeFIFO:
		return f.CreateFIFOStrategy(), nil
	case AllocationStrategyTypeManual:
		if len(requests) == 0 {
			return nil, shared.NewDomainError(shared.CodeValidation, "Manual strategy requires allocation requests")
		}
		return f.CreateManualStrategy(requests), nil
	default:
		return nil, shared.NewDomainError(shared.CodeValidation, "Unknown allocation strategy type")
	}
}
