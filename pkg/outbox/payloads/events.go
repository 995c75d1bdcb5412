package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderItemSummary is the per-line view carried on order events.
type OrderItemSummary struct {
	ProductID        uuid.UUID `json:"product_id"`
	Name             string    `json:"name"`
	Size             string    `json:"size,omitempty"`
	Quantity         int       `json:"quantity"`
	PriceAtTimeCents int       `json:"price_at_time_cents"`
	LineTotalCents   int       `json:"line_total_cents"`
}

// OrderCreatedEvent is emitted in the checkout transaction once the order is persisted.
type OrderCreatedEvent struct {
	OrderID            uuid.UUID          `json:"order_id"`
	OrderNumber        string             `json:"order_number"`
	UserID             uuid.UUID          `json:"user_id"`
	BuyerEmail         string             `json:"buyer_email"`
	BuyerName          string             `json:"buyer_name"`
	Status             enums.OrderStatus  `json:"status"`
	SubtotalCents      int                `json:"subtotal_cents"`
	ShippingCents      int                `json:"shipping_cents"`
	DiscountCents      int                `json:"discount_cents"`
	TotalCents         int                `json:"total_cents"`
	PaymentAmountCents int                `json:"payment_amount_cents"`
	Currency           string             `json:"currency"`
	DiscountCode       *string            `json:"discount_code,omitempty"`
	IsLayby            bool               `json:"is_layby"`
	Items              []OrderItemSummary `json:"items"`
	CreatedAt          time.Time          `json:"created_at"`
}

// OrderStatusChangedEvent is emitted whenever an order moves between statuses.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	UserID         uuid.UUID         `json:"user_id"`
	BuyerEmail     string            `json:"buyer_email"`
	BuyerName      string            `json:"buyer_name"`
	From           enums.OrderStatus `json:"from"`
	To             enums.OrderStatus `json:"to"`
	Reason         string            `json:"reason,omitempty"`
	TotalCents     int               `json:"total_cents"`
	Currency       string            `json:"currency"`
	Carrier        *string           `json:"carrier,omitempty"`
	TrackingNumber *string           `json:"tracking_number,omitempty"`
	ChangedAt      time.Time         `json:"changed_at"`
}
