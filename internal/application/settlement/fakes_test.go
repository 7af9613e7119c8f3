package settlement

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/settleflow/backend/internal/domain/partner"
	"github.com/settleflow/backend/internal/domain/settlement"
	"github.com/settleflow/backend/internal/domain/shared"
)

// The services under test run multi-step flows inside a transaction and
// reload aggregates on retry, so mock-style expectation recording would
// obscure what the tests check. These fakes keep aggregates in maps and
// behave like the GORM repositories for the queries the services issue:
// reads hand out copies, writes store copies, and SaveWithLock can be
// primed to fail once to exercise the optimistic retry paths.

type fakeTxManager struct{}

func (fakeTxManager) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type capturingPublisher struct {
	events []shared.DomainEvent
}

func (p *capturingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

func (p *capturingPublisher) eventTypes() []string {
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType())
	}
	return types
}

func (p *capturingPublisher) countType(eventType string) int {
	n := 0
	for _, e := range p.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

type fakeIdempotencyStore struct {
	held map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{held: make(map[string]bool)}
}

func (s *fakeIdempotencyStore) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	if s.held[key] {
		return false, nil
	}
	s.held[key] = true
	return true, nil
}

func (s *fakeIdempotencyStore) Release(_ context.Context, key string) error {
	delete(s.held, key)
	return nil
}

type fakeCounterpartyRepo struct {
	byID map[uuid.UUID]*partner.Counterparty
}

func newFakeCounterpartyRepo() *fakeCounterpartyRepo {
	return &fakeCounterpartyRepo{byID: make(map[uuid.UUID]*partner.Counterparty)}
}

func (r *fakeCounterpartyRepo) add(cp *partner.Counterparty) {
	snap := *cp
	r.byID[cp.ID] = &snap
}

func (r *fakeCounterpartyRepo) FindByID(_ context.Context, id uuid.UUID) (*partner.Counterparty, error) {
	cp, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	snap := *cp
	return &snap, nil
}

func (r *fakeCounterpartyRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*partner.Counterparty, error) {
	cp, err := r.FindByID(ctx, id)
	if err != nil || cp == nil || cp.TenantID != tenantID {
		return nil, err
	}
	return cp, nil
}

func (r *fakeCounterpartyRepo) FindByName(_ context.Context, tenantID uuid.UUID, name string) (*partner.Counterparty, error) {
	for _, cp := range r.byID {
		if cp.TenantID == tenantID && cp.Name == name {
			snap := *cp
			return &snap, nil
		}
	}
	return nil, nil
}

func (r *fakeCounterpartyRepo) ResolveName(_ context.Context, tenantID uuid.UUID, name string) (*partner.Counterparty, error) {
	for _, cp := range r.byID {
		if cp.TenantID == tenantID && cp.MatchesName(name) {
			snap := *cp
			return &snap, nil
		}
	}
	return nil, nil
}

func (r *fakeCounterpartyRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, _ partner.CounterpartyFilter) ([]partner.Counterparty, error) {
	var out []partner.Counterparty
	for _, cp := range r.byID {
		if cp.TenantID == tenantID {
			out = append(out, *cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeCounterpartyRepo) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter partner.CounterpartyFilter) (int64, error) {
	all, _ := r.FindAllForTenant(ctx, tenantID, filter)
	return int64(len(all)), nil
}

func (r *fakeCounterpartyRepo) Save(_ context.Context, cp *partner.Counterparty) error {
	snap := *cp
	r.byID[cp.ID] = &snap
	return nil
}

func (r *fakeCounterpartyRepo) SaveWithLock(ctx context.Context, cp *partner.Counterparty) error {
	return r.Save(ctx, cp)
}

type fakeVoucherRepo struct {
	byID map[uuid.UUID]*settlement.Voucher
	// saveLockErr is returned by the next SaveWithLock call, then cleared
	saveLockErr error
	// saveLockOrder records the voucher IDs passed to SaveWithLock
	saveLockOrder []uuid.UUID
}

func newFakeVoucherRepo() *fakeVoucherRepo {
	return &fakeVoucherRepo{byID: make(map[uuid.UUID]*settlement.Voucher)}
}

func (r *fakeVoucherRepo) add(v *settlement.Voucher) {
	snap := *v
	r.byID[v.ID] = &snap
}

func (r *fakeVoucherRepo) get(id uuid.UUID) *settlement.Voucher {
	return r.byID[id]
}

func (r *fakeVoucherRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.Voucher, error) {
	v, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	snap := *v
	return &snap, nil
}

func (r *fakeVoucherRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*settlement.Voucher, error) {
	v, err := r.FindByID(ctx, id)
	if err != nil || v == nil || v.TenantID != tenantID {
		return nil, err
	}
	return v, nil
}

func (r *fakeVoucherRepo) FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*settlement.Voucher, error) {
	var out []*settlement.Voucher
	for _, id := range ids {
		v, err := r.FindByIDForTenant(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeVoucherRepo) FindByNumberForTenant(_ context.Context, tenantID uuid.UUID, number string) (*settlement.Voucher, error) {
	for _, v := range r.byID {
		if v.TenantID == tenantID && v.VoucherNumber == number {
			snap := *v
			return &snap, nil
		}
	}
	return nil, nil
}

func (r *fakeVoucherRepo) FindOpenByCounterpartyAndSide(_ context.Context, tenantID, counterpartyID uuid.UUID, side settlement.VoucherSide) ([]*settlement.Voucher, error) {
	var out []*settlement.Voucher
	for _, v := range r.byID {
		if v.TenantID != tenantID || v.CounterpartyID != counterpartyID || v.Side != side {
			continue
		}
		if v.Balance().IsZero() || v.Moderation != settlement.ModerationNone {
			continue
		}
		snap := *v
		out = append(out, &snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TradeDate.Equal(out[j].TradeDate) {
			return out[i].TradeDate.Before(out[j].TradeDate)
		}
		return out[i].VoucherNumber < out[j].VoucherNumber
	})
	return out, nil
}

func (r *fakeVoucherRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter settlement.VoucherFilter) ([]*settlement.Voucher, error) {
	var out []*settlement.Voucher
	for _, v := range r.byID {
		if v.TenantID != tenantID {
			continue
		}
		if filter.CounterpartyID != nil && v.CounterpartyID != *filter.CounterpartyID {
			continue
		}
		if filter.Side != nil && v.Side != *filter.Side {
			continue
		}
		if filter.Status != nil && v.Status() != *filter.Status {
			continue
		}
		snap := *v
		out = append(out, &snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VoucherNumber < out[j].VoucherNumber })
	return out, nil
}

func (r *fakeVoucherRepo) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter settlement.VoucherFilter) (int64, error) {
	all, _ := r.FindAllForTenant(ctx, tenantID, filter)
	return int64(len(all)), nil
}

func (r *fakeVoucherRepo) Save(_ context.Context, v *settlement.Voucher) error {
	snap := *v
	r.byID[v.ID] = &snap
	return nil
}

func (r *fakeVoucherRepo) SaveWithLock(ctx context.Context, v *settlement.Voucher) error {
	r.saveLockOrder = append(r.saveLockOrder, v.ID)
	if r.saveLockErr != nil {
		err := r.saveLockErr
		r.saveLockErr = nil
		return err
	}
	return r.Save(ctx, v)
}

func (r *fakeVoucherRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	if v, ok := r.byID[id]; ok && v.TenantID == tenantID {
		delete(r.byID, id)
	}
	return nil
}

type fakeTransactionRepo struct {
	byID map[uuid.UUID]*settlement.CashTransaction
	// saveLockErr is returned by the next SaveWithLock call, then cleared
	saveLockErr error
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{byID: make(map[uuid.UUID]*settlement.CashTransaction)}
}

func (r *fakeTransactionRepo) add(tx *settlement.CashTransaction) {
	snap := *tx
	r.byID[tx.ID] = &snap
}

func (r *fakeTransactionRepo) get(id uuid.UUID) *settlement.CashTransaction {
	return r.byID[id]
}

// bySource returns stored transactions carrying the source, newest last
func (r *fakeTransactionRepo) bySource(source settlement.TransactionSource) []*settlement.CashTransaction {
	var out []*settlement.CashTransaction
	for _, tx := range r.byID {
		if tx.Source == source {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (r *fakeTransactionRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.CashTransaction, error) {
	tx, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	snap := *tx
	return &snap, nil
}

func (r *fakeTransactionRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*settlement.CashTransaction, error) {
	tx, err := r.FindByID(ctx, id)
	if err != nil || tx == nil || tx.TenantID != tenantID {
		return nil, err
	}
	return tx, nil
}

func (r *fakeTransactionRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter settlement.TransactionFilter) ([]*settlement.CashTransaction, error) {
	var out []*settlement.CashTransaction
	for _, tx := range r.byID {
		if tx.TenantID != tenantID {
			continue
		}
		if filter.Type != nil && tx.Type != *filter.Type {
			continue
		}
		if filter.Source != nil && tx.Source != *filter.Source {
			continue
		}
		if filter.Unresolved != nil && tx.IsResolved() == *filter.Unresolved {
			continue
		}
		snap := *tx
		out = append(out, &snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *fakeTransactionRepo) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter settlement.TransactionFilter) (int64, error) {
	all, _ := r.FindAllForTenant(ctx, tenantID, filter)
	return int64(len(all)), nil
}

func (r *fakeTransactionRepo) ListUnmatchedNames(_ context.Context, tenantID uuid.UUID) ([]settlement.UnmatchedName, error) {
	grouped := make(map[string]*settlement.UnmatchedName)
	for _, tx := range r.byID {
		if tx.TenantID != tenantID || tx.CounterpartyID != nil || tx.RawName == "" {
			continue
		}
		entry, ok := grouped[tx.RawName]
		if !ok {
			entry = &settlement.UnmatchedName{RawName: tx.RawName, FirstSeen: tx.CreatedAt}
			grouped[tx.RawName] = entry
		}
		entry.Occurrences++
		if tx.CreatedAt.Before(entry.FirstSeen) {
			entry.FirstSeen = tx.CreatedAt
		}
	}
	out := make([]settlement.UnmatchedName, 0, len(grouped))
	for _, entry := range grouped {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Occurrences != out[j].Occurrences {
			return out[i].Occurrences > out[j].Occurrences
		}
		return out[i].RawName < out[j].RawName
	})
	return out, nil
}

func (r *fakeTransactionRepo) FindUnresolvedByRawName(_ context.Context, tenantID uuid.UUID, rawName string) ([]*settlement.CashTransaction, error) {
	var out []*settlement.CashTransaction
	for _, tx := range r.byID {
		if tx.TenantID == tenantID && tx.CounterpartyID == nil && tx.RawName == rawName {
			snap := *tx
			out = append(out, &snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeTransactionRepo) Save(_ context.Context, tx *settlement.CashTransaction) error {
	snap := *tx
	r.byID[tx.ID] = &snap
	return nil
}

func (r *fakeTransactionRepo) SaveWithLock(ctx context.Context, tx *settlement.CashTransaction) error {
	if r.saveLockErr != nil {
		err := r.saveLockErr
		r.saveLockErr = nil
		return err
	}
	return r.Save(ctx, tx)
}

type fakeAllocationRepo struct {
	byID map[uuid.UUID]*settlement.Allocation
}

func newFakeAllocationRepo() *fakeAllocationRepo {
	return &fakeAllocationRepo{byID: make(map[uuid.UUID]*settlement.Allocation)}
}

func (r *fakeAllocationRepo) get(id uuid.UUID) *settlement.Allocation {
	return r.byID[id]
}

func (r *fakeAllocationRepo) active() []*settlement.Allocation {
	var out []*settlement.Allocation
	for _, a := range r.byID {
		if a.IsActive() {
			out = append(out, a)
		}
	}
	return out
}

func (r *fakeAllocationRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.Allocation, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	snap := *a
	return &snap, nil
}

func (r *fakeAllocationRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*settlement.Allocation, error) {
	a, err := r.FindByID(ctx, id)
	if err != nil || a == nil || a.TenantID != tenantID {
		return nil, err
	}
	return a, nil
}

func (r *fakeAllocationRepo) FindActiveByTransaction(_ context.Context, tenantID, transactionID uuid.UUID) ([]*settlement.Allocation, error) {
	var out []*settlement.Allocation
	for _, a := range r.byID {
		if a.TenantID == tenantID && a.TransactionID == transactionID && a.IsActive() {
			snap := *a
			out = append(out, &snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *fakeAllocationRepo) FindActiveByVoucher(_ context.Context, tenantID, voucherID uuid.UUID) ([]*settlement.Allocation, error) {
	var out []*settlement.Allocation
	for _, a := range r.byID {
		if a.TenantID == tenantID && a.VoucherID == voucherID && a.IsActive() {
			snap := *a
			out = append(out, &snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *fakeAllocationRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter settlement.AllocationFilter) ([]*settlement.Allocation, error) {
	var out []*settlement.Allocation
	for _, a := range r.byID {
		if a.TenantID != tenantID {
			continue
		}
		if filter.TransactionID != nil && a.TransactionID != *filter.TransactionID {
			continue
		}
		if filter.VoucherID != nil && a.VoucherID != *filter.VoucherID {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		if filter.Method != nil && a.Method != *filter.Method {
			continue
		}
		snap := *a
		out = append(out, &snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *fakeAllocationRepo) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter settlement.AllocationFilter) (int64, error) {
	all, _ := r.FindAllForTenant(ctx, tenantID, filter)
	return int64(len(all)), nil
}

func (r *fakeAllocationRepo) Save(_ context.Context, a *settlement.Allocation) error {
	snap := *a
	r.byID[a.ID] = &snap
	return nil
}

func (r *fakeAllocationRepo) SaveWithLock(ctx context.Context, a *settlement.Allocation) error {
	return r.Save(ctx, a)
}

type fakeNettingRepo struct {
	byID map[uuid.UUID]*settlement.NettingRecord
}

func newFakeNettingRepo() *fakeNettingRepo {
	return &fakeNettingRepo{byID: make(map[uuid.UUID]*settlement.NettingRecord)}
}

func (r *fakeNettingRepo) get(id uuid.UUID) *settlement.NettingRecord {
	return r.byID[id]
}

func (r *fakeNettingRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.NettingRecord, error) {
	n, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	snap := *n
	return &snap, nil
}

func (r *fakeNettingRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*settlement.NettingRecord, error) {
	n, err := r.FindByID(ctx, id)
	if err != nil || n == nil || n.TenantID != tenantID {
		return nil, err
	}
	return n, nil
}

func (r *fakeNettingRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter settlement.NettingFilter) ([]*settlement.NettingRecord, error) {
	var out []*settlement.NettingRecord
	for _, n := range r.byID {
		if n.TenantID != tenantID {
			continue
		}
		if filter.CounterpartyID != nil && n.CounterpartyID != *filter.CounterpartyID {
			continue
		}
		if filter.Status != nil && n.Status != *filter.Status {
			continue
		}
		snap := *n
		out = append(out, &snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *fakeNettingRepo) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter settlement.NettingFilter) (int64, error) {
	all, _ := r.FindAllForTenant(ctx, tenantID, filter)
	return int64(len(all)), nil
}

func (r *fakeNettingRepo) Save(_ context.Context, n *settlement.NettingRecord) error {
	snap := *n
	r.byID[n.ID] = &snap
	return nil
}

func (r *fakeNettingRepo) SaveWithLock(ctx context.Context, n *settlement.NettingRecord) error {
	return r.Save(ctx, n)
}

type fakeChangeRepo struct {
	byID map[uuid.UUID]*settlement.VoucherChangeRequest
}

func newFakeChangeRepo() *fakeChangeRepo {
	return &fakeChangeRepo{byID: make(map[uuid.UUID]*settlement.VoucherChangeRequest)}
}

func (r *fakeChangeRepo) get(id uuid.UUID) *settlement.VoucherChangeRequest {
	return r.byID[id]
}

func (r *fakeChangeRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.VoucherChangeRequest, error) {
	cr, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	snap := *cr
	return &snap, nil
}

func (r *fakeChangeRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*settlement.VoucherChangeRequest, error) {
	cr, err := r.FindByID(ctx, id)
	if err != nil || cr == nil || cr.TenantID != tenantID {
		return nil, err
	}
	return cr, nil
}

func (r *fakeChangeRepo) FindPendingByVoucher(_ context.Context, tenantID, voucherID uuid.UUID) ([]*settlement.VoucherChangeRequest, error) {
	var out []*settlement.VoucherChangeRequest
	for _, cr := range r.byID {
		if cr.TenantID == tenantID && cr.VoucherID == voucherID && cr.IsPending() {
			snap := *cr
			out = append(out, &snap)
		}
	}
	return out, nil
}

func (r *fakeChangeRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter settlement.ChangeRequestFilter) ([]*settlement.VoucherChangeRequest, error) {
	var out []*settlement.VoucherChangeRequest
	for _, cr := range r.byID {
		if cr.TenantID != tenantID {
			continue
		}
		if filter.VoucherID != nil && cr.VoucherID != *filter.VoucherID {
			continue
		}
		if filter.Status != nil && cr.Status != *filter.Status {
			continue
		}
		snap := *cr
		out = append(out, &snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *fakeChangeRepo) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter settlement.ChangeRequestFilter) (int64, error) {
	all, _ := r.FindAllForTenant(ctx, tenantID, filter)
	return int64(len(all)), nil
}

func (r *fakeChangeRepo) Save(_ context.Context, cr *settlement.VoucherChangeRequest) error {
	snap := *cr
	r.byID[cr.ID] = &snap
	return nil
}

func (r *fakeChangeRepo) SaveWithLock(ctx context.Context, cr *settlement.VoucherChangeRequest) error {
	return r.Save(ctx, cr)
}
