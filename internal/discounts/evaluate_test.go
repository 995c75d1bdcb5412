package discounts

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var evalNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func baseCode(kind enums.DiscountKind, value string) *models.DiscountCode {
	return &models.DiscountCode{
		Code:     "WINTER",
		Kind:     kind,
		Value:    decimal.RequireFromString(value),
		StartsAt: evalNow.Add(-24 * time.Hour),
		EndsAt:   evalNow.Add(24 * time.Hour),
		Active:   true,
	}
}

func TestEvaluateAmounts(t *testing.T) {
	cases := []struct {
		name     string
		code     *models.DiscountCode
		subtotal int
		shipping int
		want     int
	}{
		{name: "percentage rounds half up", code: baseCode(enums.DiscountKindPercentage, "15"), subtotal: 1003, want: 150},
		{name: "percentage capped", code: func() *models.DiscountCode {
			c := baseCode(enums.DiscountKindPercentage, "50")
			c.MaxDiscountCents = intPtr(20000)
			return c
		}(), subtotal: 100000, want: 20000},
		{name: "fixed in currency units", code: baseCode(enums.DiscountKindFixed, "100.50"), subtotal: 50000, want: 10050},
		{name: "free shipping", code: baseCode(enums.DiscountKindShipping, "0"), subtotal: 50000, shipping: 6500, want: 6500},
		{name: "negative fixed clamps to zero", code: baseCode(enums.DiscountKindFixed, "-5"), subtotal: 50000, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Evaluate(tc.code, tc.subtotal, tc.shipping, evalNow)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.AmountCents)
			assert.Equal(t, tc.code.Kind, res.Kind)
		})
	}
}

func TestEvaluateFailureOrder(t *testing.T) {
	_, err := Evaluate(nil, 1000, 0, evalNow)
	assert.ErrorIs(t, err, ErrNotFound)

	inactive := baseCode(enums.DiscountKindFixed, "10")
	inactive.Active = false
	inactive.EndsAt = evalNow.Add(-time.Hour)
	_, err = Evaluate(inactive, 1000, 0, evalNow)
	assert.ErrorIs(t, err, ErrNotFound)

	// expired and exhausted and below minimum: expiry wins
	expired := baseCode(enums.DiscountKindFixed, "10")
	expired.EndsAt = evalNow.Add(-time.Second)
	expired.UsageLimit = intPtr(1)
	expired.TimesUsed = 1
	expired.MinPurchaseCents = intPtr(5000)
	_, err = Evaluate(expired, 1000, 0, evalNow)
	assert.ErrorIs(t, err, ErrExpired)

	notStarted := baseCode(enums.DiscountKindFixed, "10")
	notStarted.StartsAt = evalNow.Add(time.Minute)
	_, err = Evaluate(notStarted, 1000, 0, evalNow)
	assert.ErrorIs(t, err, ErrExpired)

	exhausted := baseCode(enums.DiscountKindFixed, "10")
	exhausted.UsageLimit = intPtr(3)
	exhausted.TimesUsed = 3
	exhausted.MinPurchaseCents = intPtr(5000)
	_, err = Evaluate(exhausted, 1000, 0, evalNow)
	assert.ErrorIs(t, err, ErrLimitReached)

	minimum := baseCode(enums.DiscountKindFixed, "10")
	minimum.MinPurchaseCents = intPtr(5000)
	_, err = Evaluate(minimum, 4999, 0, evalNow)
	assert.ErrorIs(t, err, ErrBelowMinimum)

	res, err := Evaluate(minimum, 5000, 0, evalNow)
	require.NoError(t, err)
	assert.Equal(t, 1000, res.AmountCents)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SUMMER10", NormalizeCode("  summer10 "))
}
