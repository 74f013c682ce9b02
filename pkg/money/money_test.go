package money_test

import (
	"testing"

	"telehealth-booking/pkg/money"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_TwentyPercent(t *testing.T) {
	fee, earning := money.Split(1000, decimal.RequireFromString("0.20"))
	assert.Equal(t, int64(200), fee)
	assert.Equal(t, int64(800), earning)
}

func TestSplit_RoundsFeeAndConserves(t *testing.T) {
	rate := decimal.RequireFromString("0.20")
	for _, amount := range []int64{0, 1, 3, 7, 999, 1001, 123457} {
		fee, earning := money.Split(amount, rate)
		assert.Equal(t, amount, fee+earning, "amount %d", amount)
		assert.GreaterOrEqual(t, fee, int64(0))
		assert.GreaterOrEqual(t, earning, int64(0))
	}

	fee, _ := money.Split(3, rate)
	assert.Equal(t, int64(1), fee) // 0.6 rounds to 1
}

func TestToMinor(t *testing.T) {
	minor, err := money.ToMinor(decimal.RequireFromString("150000.00"), "IDR")
	require.NoError(t, err)
	assert.Equal(t, int64(15000000), minor)

	minor, err = money.ToMinor(decimal.RequireFromString("10.005"), "usd")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), minor)

	minor, err = money.ToMinor(decimal.RequireFromString("5000"), "JPY")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), minor)

	_, err = money.ToMinor(decimal.RequireFromString("-1"), "USD")
	assert.ErrorIs(t, err, money.ErrInvalidAmount)
}

func TestFromMinor(t *testing.T) {
	assert.True(t, decimal.RequireFromString("10.00").Equal(money.FromMinor(1000, "USD")))
	assert.True(t, decimal.RequireFromString("5000").Equal(money.FromMinor(5000, "JPY")))
}
