package pricing

import (
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestGrandTotal(t *testing.T) {
	cases := []struct {
		name                         string
		subtotal, shipping, discount int
		want                         int
	}{
		{name: "plain", subtotal: 10000, shipping: 6500, want: 16500},
		{name: "discounted", subtotal: 10000, shipping: 6500, discount: 6500, want: 10000},
		{name: "clamped at zero", subtotal: 1000, shipping: 0, discount: 5000, want: 0},
	}
	for _, tc := range cases {
		if got := GrandTotal(tc.subtotal, tc.shipping, tc.discount); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestNewTotalsFormats(t *testing.T) {
	totals := NewTotals(129950, 0, 0, "ZAR")
	if totals.FormattedTotal != "ZAR 1299.50" {
		t.Fatalf("unexpected formatted total %q", totals.FormattedTotal)
	}
}

func TestShortageError(t *testing.T) {
	if err := ShortageError(nil); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	err := ShortageError([]StockShortage{{ProductID: uuid.New(), ProductName: "Linen shirt", RequestedQty: 3}})
	if err == nil {
		t.Fatal("expected error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict code, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	shortages, ok := details["shortages"].([]StockShortage)
	if !ok || len(shortages) != 1 {
		t.Fatalf("unexpected shortages %v", details["shortages"])
	}
}
