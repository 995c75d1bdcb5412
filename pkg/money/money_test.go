package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "1299.50", Format(129950))
	assert.Equal(t, "0.05", Format(5))
	assert.Equal(t, "0.00", Format(0))
	assert.Equal(t, "ZAR 12.00", FormatWithCurrency(1200, "ZAR"))
}

func TestParseAmount(t *testing.T) {
	cents, err := ParseAmount("1299.50")
	require.NoError(t, err)
	assert.Equal(t, 129950, cents)

	cents, err = ParseAmount("10")
	require.NoError(t, err)
	assert.Equal(t, 1000, cents)

	_, err = ParseAmount("ten")
	require.Error(t, err)
}

func TestPercentRounding(t *testing.T) {
	assert.Equal(t, 1000, Percent(10000, decimal.NewFromInt(10)))
	// 12.5% of 0.99 = 0.12375 -> 12 cents
	assert.Equal(t, 12, Percent(99, decimal.RequireFromString("12.5")))
	// 20% of 1.03 = 0.206 -> 21 cents when rounding up
	assert.Equal(t, 21, PercentCeil(103, decimal.NewFromInt(20)))
	assert.Equal(t, 20, PercentCeil(100, decimal.NewFromInt(20)))
}

func TestDivRound(t *testing.T) {
	assert.Equal(t, 1000, DivRound(8000, 8))
	assert.Equal(t, 333, DivRound(1000, 3))
	assert.Equal(t, 167, DivRound(500, 3))
	assert.Equal(t, 0, DivRound(500, 0))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-5, 0, 10))
	assert.Equal(t, 10, Clamp(50, 0, 10))
	assert.Equal(t, 7, Clamp(7, 0, 10))
}
