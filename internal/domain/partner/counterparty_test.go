package partner

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleflow/backend/internal/domain/shared"
)

func createTestCounterparty(t *testing.T) *Counterparty {
	cp, err := NewCounterparty(uuid.New(), "Acme Trading")
	require.NoError(t, err)
	return cp
}

func TestNewCounterparty_Success(t *testing.T) {
	cp := createTestCounterparty(t)

	assert.Equal(t, "Acme Trading", cp.Name)
	assert.Empty(t, cp.Aliases)
	assert.Len(t, cp.GetDomainEvents(), 1)
}

func TestNewCounterparty_EmptyNameFails(t *testing.T) {
	_, err := NewCounterparty(uuid.New(), "   ")
	require.Error(t, err)
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
}

func TestCounterparty_AddAlias(t *testing.T) {
	cp := createTestCounterparty(t)

	require.NoError(t, cp.AddAlias("ACME TRD CO"))
	assert.True(t, cp.Aliases.Contains("ACME TRD CO"))
}

func TestCounterparty_AddAlias_Idempotent(t *testing.T) {
	cp := createTestCounterparty(t)
	require.NoError(t, cp.AddAlias("ACME TRD CO"))
	version := cp.Version

	require.NoError(t, cp.AddAlias("ACME TRD CO"))
	assert.Equal(t, version, cp.Version)
	assert.Len(t, cp.Aliases, 1)
}

func TestCounterparty_AddAlias_TrimsWhitespace(t *testing.T) {
	cp := createTestCounterparty(t)

	require.NoError(t, cp.AddAlias("  ACME TRD CO  "))
	assert.True(t, cp.Aliases.Contains("ACME TRD CO"))
}

func TestCounterparty_MatchesName(t *testing.T) {
	cp := createTestCounterparty(t)
	require.NoError(t, cp.AddAlias("ACME TRD CO"))

	assert.True(t, cp.MatchesName("Acme Trading"))
	assert.True(t, cp.MatchesName("ACME TRD CO"))
	assert.False(t, cp.MatchesName("Other Corp"))
}

func TestCounterparty_Rename_KeepsOldNameAsAlias(t *testing.T) {
	cp := createTestCounterparty(t)

	require.NoError(t, cp.Rename("Acme Trading Co., Ltd."))
	assert.Equal(t, "Acme Trading Co., Ltd.", cp.Name)
	assert.True(t, cp.MatchesName("Acme Trading"))
}

func TestAliasList_ValueScan(t *testing.T) {
	list := AliasList{"ACME TRD CO", "ACME LTD"}

	raw, err := list.Value()
	require.NoError(t, err)

	var scanned AliasList
	require.NoError(t, scanned.Scan(raw))
	assert.Equal(t, list, scanned)
}
