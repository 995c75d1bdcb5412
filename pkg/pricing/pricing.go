// Package pricing holds order total arithmetic shared by checkout and previews.
package pricing

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/money"
)

// Totals is the frozen price breakdown of an order.
type Totals struct {
	SubtotalCents  int    `json:"subtotal_cents"`
	ShippingCents  int    `json:"shipping_cents"`
	DiscountCents  int    `json:"discount_cents"`
	TotalCents     int    `json:"total_cents"`
	Currency       string `json:"currency"`
	FormattedTotal string `json:"formatted_total"`
}

// GrandTotal is subtotal + shipping - discount, never below zero.
func GrandTotal(subtotalCents, shippingCents, discountCents int) int {
	total := subtotalCents + shippingCents - discountCents
	if total < 0 {
		return 0
	}
	return total
}

// NewTotals assembles the breakdown and formats the grand total.
func NewTotals(subtotalCents, shippingCents, discountCents int, currency string) Totals {
	total := GrandTotal(subtotalCents, shippingCents, discountCents)
	return Totals{
		SubtotalCents:  subtotalCents,
		ShippingCents:  shippingCents,
		DiscountCents:  discountCents,
		TotalCents:     total,
		Currency:       currency,
		FormattedTotal: money.FormatWithCurrency(total, currency),
	}
}

// StockShortage describes a line that could not be reserved.
type StockShortage struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name,omitempty"`
	Size         string    `json:"size,omitempty"`
	RequestedQty int       `json:"requested_qty"`
}

// ShortageError returns a conflict listing every short line, or nil when there are none.
func ShortageError(shortages []StockShortage) error {
	if len(shortages) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("insufficient stock for %d item(s)", len(shortages))).WithDetails(map[string]any{
		"shortages": shortages,
	})
}
