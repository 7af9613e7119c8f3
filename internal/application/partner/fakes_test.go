package partner

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/settleflow/backend/internal/domain/partner"
	"github.com/settleflow/backend/internal/domain/settlement"
	"github.com/settleflow/backend/internal/domain/shared"
)

// Map-backed fakes standing in for the GORM repositories. Reads hand out
// copies and writes store copies, mirroring how aggregates round-trip
// through the database.

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

func (p *capturingPublisher) countType(eventType string) int {
	n := 0
	for _, e := range p.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
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

func (r *fakeCounterpartyRepo) get(id uuid.UUID) *partner.Counterparty {
	return r.byID[id]
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

func (r *fakeCounterpartyRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter partner.CounterpartyFilter) ([]partner.Counterparty, error) {
	var out []partner.Counterparty
	for _, cp := range r.byID {
		if cp.TenantID != tenantID {
			continue
		}
		if filter.Name != "" && cp.Name != filter.Name {
			continue
		}
		out = append(out, *cp)
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

type fakeTransactionRepo struct {
	byID map[uuid.UUID]*settlement.CashTransaction
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

func (r *fakeTransactionRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, _ settlement.TransactionFilter) ([]*settlement.CashTransaction, error) {
	var out []*settlement.CashTransaction
	for _, tx := range r.byID {
		if tx.TenantID == tenantID {
			snap := *tx
			out = append(out, &snap)
		}
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
	return r.Save(ctx, tx)
}
