package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/settleflow/backend/internal/domain/settlement"
	"github.com/settleflow/backend/internal/domain/shared"
	"github.com/settleflow/backend/internal/infrastructure/telemetry"
)

// ChangeService manages the review workflow for voucher edits. Edits never
// touch a voucher directly; they go through a change request that a reviewer
// approves or rejects.
type ChangeService struct {
	changeRepo  settlement.ChangeRequestRepository
	voucherRepo settlement.VoucherRepository
	txManager   shared.TransactionManager
	publisher   shared.EventPublisher
}

// NewChangeService creates a new ChangeService
func NewChangeService(
	changeRepo settlement.ChangeRequestRepository,
	voucherRepo settlement.VoucherRepository,
	txManager shared.TransactionManager,
	publisher shared.EventPublisher,
) *ChangeService {
	return &ChangeService{
		changeRepo:  changeRepo,
		voucherRepo: voucherRepo,
		txManager:   txManager,
		publisher:   publisher,
	}
}

// SubmitChangeRequest represents a proposed voucher edit
type SubmitChangeRequest struct {
	TenantID  uuid.UUID
	VoucherID uuid.UUID
	NewData   settlement.VoucherRevision
	Reason    string
	ActorID   *uuid.UUID
}

// Submit captures the voucher's current state and the proposed state as an
// immutable pair and queues the request for review.
func (s *ChangeService) Submit(ctx context.Context, req SubmitChangeRequest) (*settlement.VoucherChangeRequest, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "change_request", "submit")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrVoucherID, req.VoucherID.String(),
	)

	voucher, err := s.voucherRepo.FindByIDForTenant(ctx, req.TenantID, req.VoucherID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load voucher: %w", err)
	}
	if voucher == nil {
		err := shared.NewDomainError(shared.CodeNotFound, "Voucher not found")
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !voucher.CanMutate() {
		err := shared.NewDomainError(shared.CodeModerationLocked,
			fmt.Sprintf("Voucher %s is %s", voucher.VoucherNumber, voucher.Moderation))
		telemetry.RecordError(span, err)
		return nil, err
	}

	pending, err := s.changeRepo.FindPendingByVoucher(ctx, req.TenantID, req.VoucherID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to check pending requests: %w", err)
	}
	if len(pending) > 0 {
		err := shared.NewDomainError(shared.CodeAlreadyExists,
			fmt.Sprintf("Voucher %s already has a pending change request", voucher.VoucherNumber))
		telemetry.RecordError(span, err)
		return nil, err
	}

	request, err := settlement.NewVoucherChangeRequest(req.TenantID, voucher, req.NewData, req.Reason, req.ActorID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.changeRepo.Save(ctx, request); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save change request: %w", err)
	}

	s.publish(ctx, collectEvents(req.ActorID, request))
	return request, nil
}

// Approve applies the proposed revision to the voucher and closes the
// request, atomically. A revision that would push the total below the
// already allocated amount fails with an allocation conflict and the request
// stays pending.
func (s *ChangeService) Approve(ctx context.Context, tenantID, requestID uuid.UUID, note string, actorID *uuid.UUID) (*settlement.VoucherChangeRequest, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "change_request", "approve")
	defer span.End()

	var request *settlement.VoucherChangeRequest
	var events []shared.DomainEvent

	err := s.txManager.InTx(ctx, func(ctx context.Context) error {
		var err error
		request, err = s.changeRepo.FindByIDForTenant(ctx, tenantID, requestID)
		if err != nil {
			return fmt.Errorf("failed to load change request: %w", err)
		}
		if request == nil {
			return shared.NewDomainError(shared.CodeNotFound, "Change request not found")
		}

		voucher, err := s.voucherRepo.FindByIDForTenant(ctx, tenantID, request.VoucherID)
		if err != nil {
			return fmt.Errorf("failed to load voucher: %w", err)
		}
		if voucher == nil {
			return shared.NewDomainError(shared.CodeNotFound, "Voucher not found")
		}

		if err := voucher.ApplyRevision(request.NewRevision()); err != nil {
			return err
		}
		if err := request.Approve(note, actorID); err != nil {
			return err
		}

		if err := s.voucherRepo.SaveWithLock(ctx, voucher); err != nil {
			return err
		}
		if err := s.changeRepo.SaveWithLock(ctx, request); err != nil {
			return err
		}

		events = collectEvents(actorID, voucher)
		events = append(events, collectEvents(actorID, request)...)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, events)
	return request, nil
}

// Reject closes the request without touching the voucher
func (s *ChangeService) Reject(ctx context.Context, tenantID, requestID uuid.UUID, note string, actorID *uuid.UUID) (*settlement.VoucherChangeRequest, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "change_request", "reject")
	defer span.End()

	request, err := s.GetRequest(ctx, tenantID, requestID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := request.Reject(note, actorID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.changeRepo.SaveWithLock(ctx, request); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, collectEvents(actorID, request))
	return request, nil
}

// GetRequest returns a single change request
func (s *ChangeService) GetRequest(ctx context.Context, tenantID, id uuid.UUID) (*settlement.VoucherChangeRequest, error) {
	request, err := s.changeRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load change request: %w", err)
	}
	if request == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Change request not found")
	}
	return request, nil
}

// ListRequests returns change requests matching the filter
func (s *ChangeService) ListRequests(ctx context.Context, tenantID uuid.UUID, filter settlement.ChangeRequestFilter) (*shared.Paginated[*settlement.VoucherChangeRequest], error) {
	items, err := s.changeRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list change requests: %w", err)
	}
	total, err := s.changeRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count change requests: %w", err)
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

func (s *ChangeService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	_ = s.publisher.Publish(ctx, events...)
}
