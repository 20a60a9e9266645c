package balance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSubUSDT(t *testing.T) {
	b := NewBalance(d("100"), d("0"), d("0"))

	require.NoError(t, b.SubUSDT(d("40.5")))
	assert.True(t, b.USDT().Equal(d("59.5")))

	assert.ErrorIs(t, b.SubUSDT(d("60")), ErrInsufficientFunds)
	assert.ErrorIs(t, b.SubUSDT(d("0")), ErrAmountNotPositive)
	assert.True(t, b.USDT().Equal(d("59.5")))
}

func TestCoins(t *testing.T) {
	b := NewBalance(d("0"), d("10"), d("0"))

	b.AddCoins(d("-5"))
	assert.True(t, b.Coins().Equal(d("10")))

	b.AddCoins(d("2.5"))
	assert.True(t, b.Coins().Equal(d("12.5")))

	assert.ErrorIs(t, b.SubCoins(d("13")), ErrInsufficientCoins)
	require.NoError(t, b.SubCoins(d("12.5")))
	assert.True(t, b.Coins().IsZero())
}

func TestExchangeAndDrain(t *testing.T) {
	b := NewBalance(d("0"), d("350"), d("0"))

	value, err := b.ExchangeCoins(d("250"))
	require.NoError(t, err)
	assert.True(t, value.Equal(d("2.5")))
	assert.True(t, b.Coins().Equal(d("100")))
	assert.True(t, b.Withdrawable().Equal(d("2.5")))

	_, err = b.ExchangeCoins(d("101"))
	assert.ErrorIs(t, err, ErrInsufficientCoins)

	amount, err := b.DrainWithdrawable()
	require.NoError(t, err)
	assert.True(t, amount.Equal(d("2.5")))
	assert.True(t, b.Withdrawable().IsZero())

	_, err = b.DrainWithdrawable()
	assert.ErrorIs(t, err, ErrNothingWithdrawable)
}
