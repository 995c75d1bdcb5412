// Package discounts resolves and redeems promotion codes.
package discounts

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
)

var (
	ErrNotFound     = errors.New("discount code not found")
	ErrExpired      = errors.New("discount code expired")
	ErrLimitReached = errors.New("discount code usage limit reached")
	ErrBelowMinimum = errors.New("order subtotal below discount minimum")
)

// Result is a resolved discount ready to be frozen onto an order.
type Result struct {
	DiscountID     uuid.UUID          `json:"-"`
	Code           string             `json:"code"`
	Kind           enums.DiscountKind `json:"kind"`
	Value          decimal.Decimal    `json:"value"`
	MaxAmountCents *int               `json:"max_amount_cents,omitempty"`
	AmountCents    int                `json:"amount_cents"`
}

// NormalizeCode trims and upper-cases user input to the stored form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluate checks a loaded code against the order amounts. A nil code is ErrNotFound.
func Evaluate(code *models.DiscountCode, subtotalCents, shippingCents int, now time.Time) (Result, error) {
	if code == nil || !code.Active {
		return Result{}, ErrNotFound
	}
	if now.Before(code.StartsAt) || now.After(code.EndsAt) {
		return Result{}, ErrExpired
	}
	if code.UsageLimit != nil && code.TimesUsed >= *code.UsageLimit {
		return Result{}, ErrLimitReached
	}
	if code.MinPurchaseCents != nil && subtotalCents < *code.MinPurchaseCents {
		return Result{}, ErrBelowMinimum
	}

	var amount int
	switch code.Kind {
	case enums.DiscountKindPercentage:
		amount = money.Percent(subtotalCents, code.Value)
	case enums.DiscountKindFixed:
		amount = money.FromDecimal(code.Value)
	case enums.DiscountKindShipping:
		amount = shippingCents
	default:
		return Result{}, ErrNotFound
	}
	if code.MaxDiscountCents != nil && amount > *code.MaxDiscountCents {
		amount = *code.MaxDiscountCents
	}
	if amount < 0 {
		amount = 0
	}

	return Result{
		DiscountID:     code.ID,
		Code:           code.Code,
		Kind:           code.Kind,
		Value:          code.Value,
		MaxAmountCents: code.MaxDiscountCents,
		AmountCents:    amount,
	}, nil
}
