package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// OrderEventRow mirrors the order_events BigQuery schema. Status changes leave
// the money breakdown empty and carry the transition instead.
type OrderEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	OrderID       string             `bigquery:"order_id"`
	OrderNumber   *string            `bigquery:"order_number"`
	UserID        *string            `bigquery:"user_id"`
	FromStatus    *string            `bigquery:"from_status"`
	ToStatus      string             `bigquery:"to_status"`
	Reason        *string            `bigquery:"reason"`
	SubtotalCents *int64             `bigquery:"subtotal_cents"`
	ShippingCents *int64             `bigquery:"shipping_cents"`
	DiscountCents *int64             `bigquery:"discount_cents"`
	TotalCents    int64              `bigquery:"total_cents"`
	Currency      string             `bigquery:"currency"`
	DiscountCode  *string            `bigquery:"discount_code"`
	IsLayby       bool               `bigquery:"is_layby"`
	ItemCount     *int64             `bigquery:"item_count"`
	Items         cbigquery.NullJSON `bigquery:"items"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}
