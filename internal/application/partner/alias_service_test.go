package partner

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleflow/backend/internal/domain/partner"
	"github.com/settleflow/backend/internal/domain/settlement"
	"github.com/settleflow/backend/internal/domain/shared"
	"github.com/settleflow/backend/internal/domain/shared/valueobject"
)

type aliasFixture struct {
	counterparties *fakeCounterpartyRepo
	txs            *fakeTransactionRepo
	pub            *capturingPublisher
	svc            *AliasService
}

func newAliasFixture() *aliasFixture {
	f := &aliasFixture{
		counterparties: newFakeCounterpartyRepo(),
		txs:            newFakeTransactionRepo(),
		pub:            &capturingPublisher{},
	}
	f.svc = NewAliasService(f.counterparties, f.txs, fakeTxManager{}, f.pub)
	return f
}

func (f *aliasFixture) addCounterparty(t *testing.T, tenantID uuid.UUID, name string) *partner.Counterparty {
	t.Helper()
	cp, err := partner.NewCounterparty(tenantID, name)
	require.NoError(t, err)
	cp.ClearDomainEvents()
	f.counterparties.add(cp)
	return cp
}

func (f *aliasFixture) addUnresolvedTx(t *testing.T, tenantID uuid.UUID, rawName string, amount float64) *settlement.CashTransaction {
	t.Helper()
	tx, err := settlement.NewCashTransaction(
		tenantID,
		nil,
		"",
		rawName,
		settlement.TransactionTypeDeposit,
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		valueobject.NewMoneyCNYFromFloat(amount),
		settlement.SourceBankImport,
	)
	require.NoError(t, err)
	tx.ClearDomainEvents()
	f.txs.add(tx)
	return tx
}

func TestAliasService_MapAliasBindsUnresolvedTransactions(t *testing.T) {
	f := newAliasFixture()
	tenantID := uuid.New()
	cp := f.addCounterparty(t, tenantID, "Acme Trading")

	tx1 := f.addUnresolvedTx(t, tenantID, "ACME TRADING CO., LTD.", 100.00)
	tx2 := f.addUnresolvedTx(t, tenantID, "ACME TRADING CO., LTD.", 200.00)
	other := f.addUnresolvedTx(t, tenantID, "Globex Corp", 300.00)

	result, err := f.svc.MapAlias(context.Background(), MapAliasRequest{
		TenantID:       tenantID,
		CounterpartyID: cp.ID,
		Alias:          "ACME TRADING CO., LTD.",
	})
	require.NoError(t, err)

	assert.Equal(t, cp.ID, result.CounterpartyID)
	assert.Equal(t, 2, result.TransactionsBound)

	assert.True(t, f.counterparties.get(cp.ID).Aliases.Contains("ACME TRADING CO., LTD."))
	for _, tx := range []*settlement.CashTransaction{f.txs.get(tx1.ID), f.txs.get(tx2.ID)} {
		require.NotNil(t, tx.CounterpartyID)
		assert.Equal(t, cp.ID, *tx.CounterpartyID)
		assert.Equal(t, "Acme Trading", tx.CounterpartyName)
	}
	assert.Nil(t, f.txs.get(other.ID).CounterpartyID)

	assert.Equal(t, 1, f.pub.countType("CounterpartyAliasAdded"))
	assert.Equal(t, 2, f.pub.countType("CashTransactionResolved"))
}

func TestAliasService_MapAliasWithNoPendingTransactions(t *testing.T) {
	f := newAliasFixture()
	tenantID := uuid.New()
	cp := f.addCounterparty(t, tenantID, "Acme Trading")

	result, err := f.svc.MapAlias(context.Background(), MapAliasRequest{
		TenantID:       tenantID,
		CounterpartyID: cp.ID,
		Alias:          "Acme HK",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.TransactionsBound)
	assert.True(t, f.counterparties.get(cp.ID).Aliases.Contains("Acme HK"))
}

func TestAliasService_MapAliasClaimedByOtherCounterparty(t *testing.T) {
	f := newAliasFixture()
	tenantID := uuid.New()
	cp := f.addCounterparty(t, tenantID, "Acme Trading")
	other := f.addCounterparty(t, tenantID, "Globex Corp")

	_, err := f.svc.MapAlias(context.Background(), MapAliasRequest{
		TenantID:       tenantID,
		CounterpartyID: cp.ID,
		Alias:          other.Name,
	})
	assert.True(t, shared.IsCode(err, shared.CodeAlreadyExists))
	assert.False(t, f.counterparties.get(cp.ID).Aliases.Contains(other.Name))
}

func TestAliasService_MapAliasRepeatBindsNewArrivals(t *testing.T) {
	f := newAliasFixture()
	tenantID := uuid.New()
	cp := f.addCounterparty(t, tenantID, "Acme Trading")

	_, err := f.svc.MapAlias(context.Background(), MapAliasRequest{
		TenantID:       tenantID,
		CounterpartyID: cp.ID,
		Alias:          "Acme HK",
	})
	require.NoError(t, err)

	late := f.addUnresolvedTx(t, tenantID, "Acme HK", 50.00)

	result, err := f.svc.MapAlias(context.Background(), MapAliasRequest{
		TenantID:       tenantID,
		CounterpartyID: cp.ID,
		Alias:          "Acme HK",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TransactionsBound)
	require.NotNil(t, f.txs.get(late.ID).CounterpartyID)
	assert.Equal(t, cp.ID, *f.txs.get(late.ID).CounterpartyID)
}

func TestAliasService_MapAliasUnknownCounterparty(t *testing.T) {
	f := newAliasFixture()

	_, err := f.svc.MapAlias(context.Background(), MapAliasRequest{
		TenantID:       uuid.New(),
		CounterpartyID: uuid.New(),
		Alias:          "Acme HK",
	})
	assert.True(t, shared.IsCode(err, shared.CodeNotFound))
}

func TestAliasService_ListUnmatchedGroupsByName(t *testing.T) {
	f := newAliasFixture()
	tenantID := uuid.New()

	f.addUnresolvedTx(t, tenantID, "Acme HK", 100.00)
	f.addUnresolvedTx(t, tenantID, "Acme HK", 200.00)
	f.addUnresolvedTx(t, tenantID, "Globex Corp", 300.00)

	names, err := f.svc.ListUnmatched(context.Background(), tenantID)
	require.NoError(t, err)

	require.Len(t, names, 2)
	assert.Equal(t, "Acme HK", names[0].RawName)
	assert.Equal(t, int64(2), names[0].Occurrences)
	assert.Equal(t, "Globex Corp", names[1].RawName)
	assert.Equal(t, int64(1), names[1].Occurrences)
}
