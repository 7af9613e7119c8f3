package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoneyCNYFromString(t *testing.T) {
	m, err := NewMoneyCNYFromString("1234.56")
	require.NoError(t, err)
	assert.True(t, m.Amount().Equal(decimal.NewFromFloat(1234.56)))
	assert.Equal(t, CNY, m.Currency())

	_, err = NewMoneyCNYFromString("not-a-number")
	assert.Error(t, err)
}

func TestMoney_Arithmetic(t *testing.T) {
	a := NewMoneyCNYFromFloat(100.50)
	b := NewMoneyCNYFromFloat(50.25)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Amount().Equal(decimal.NewFromFloat(150.75)))

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.True(t, diff.Amount().Equal(decimal.NewFromFloat(50.25)))

	min, err := a.Min(b)
	require.NoError(t, err)
	assert.True(t, min.Equals(b))
}

func TestMoney_CurrencyMismatch(t *testing.T) {
	cny := NewMoneyCNYFromFloat(100)
	usd, err := NewMoney(decimal.NewFromInt(100), USD)
	require.NoError(t, err)

	_, err = cny.Add(usd)
	assert.Error(t, err)
	_, err = cny.Sub(usd)
	assert.Error(t, err)
	assert.False(t, cny.Equals(usd))
}

func TestMoney_Comparisons(t *testing.T) {
	a := NewMoneyCNYFromFloat(100)
	b := NewMoneyCNYFromFloat(50)

	assert.True(t, a.GreaterThan(b))
	assert.True(t, b.LessThan(a))
	assert.True(t, a.IsPositive())
	assert.True(t, ZeroCNY().IsZero())
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	m := NewMoneyCNYFromFloat(99.99)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, m.Equals(decoded))
}

func TestMoney_JSONDefaultsCurrency(t *testing.T) {
	var decoded Money
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"12.34"}`), &decoded))
	assert.Equal(t, DefaultCurrency, decoded.Currency())
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "100.50 CNY", NewMoneyCNYFromFloat(100.5).String())
}
