package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/layby"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ItemDTO is an immutable order line.
type ItemDTO struct {
	ID               uuid.UUID `json:"id"`
	ProductID        uuid.UUID `json:"product_id"`
	Name             string    `json:"name"`
	Size             string    `json:"size,omitempty"`
	ImageRef         string    `json:"image_ref,omitempty"`
	Quantity         int       `json:"quantity"`
	PriceAtTimeCents int       `json:"price_at_time_cents"`
	LineTotalCents   int       `json:"line_total_cents"`
}

// OrderDTO is the customer facing view of an order.
type OrderDTO struct {
	ID                 uuid.UUID         `json:"id"`
	OrderNumber        string            `json:"order_number"`
	Status             enums.OrderStatus `json:"status"`
	SubtotalCents      int               `json:"subtotal_cents"`
	ShippingCents      int               `json:"shipping_cents"`
	DiscountCents      int               `json:"discount_cents"`
	TotalCents         int               `json:"total_cents"`
	PaymentAmountCents int               `json:"payment_amount_cents"`
	FormattedTotal     string            `json:"formatted_total"`
	Currency           string            `json:"currency"`
	DiscountCode       *string           `json:"discount_code,omitempty"`
	ShippingMethodID   uuid.UUID         `json:"shipping_method_id"`
	ShippingAddress    types.Address     `json:"shipping_address"`
	BillingAddress     types.Address     `json:"billing_address"`
	IsLayby            bool              `json:"is_layby"`
	Layby              *layby.PlanDTO    `json:"layby,omitempty"`
	BuyerEmail         string            `json:"buyer_email"`
	BuyerName          string            `json:"buyer_name"`
	PaidAt             *time.Time        `json:"paid_at,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	Items              []ItemDTO         `json:"items"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// OrderList is a cursor page of orders.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// TrackingEventDTO is one entry of the tracking log.
type TrackingEventDTO struct {
	Status            enums.TrackingStatus `json:"status"`
	Description       *string              `json:"description,omitempty"`
	Location          *string              `json:"location,omitempty"`
	Carrier           *string              `json:"carrier,omitempty"`
	TrackingNumber    *string              `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time           `json:"estimated_delivery,omitempty"`
	Latitude          *float64             `json:"latitude,omitempty"`
	Longitude         *float64             `json:"longitude,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
}

// TrackingDTO lists tracking events oldest first; CurrentStatus is the newest entry.
type TrackingDTO struct {
	OrderID       uuid.UUID            `json:"order_id"`
	OrderStatus   enums.OrderStatus    `json:"order_status"`
	CurrentStatus enums.TrackingStatus `json:"current_status"`
	Events        []TrackingEventDTO   `json:"events"`
}

// NewOrderDTO maps an order with preloaded items.
func NewOrderDTO(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                 order.ID,
		OrderNumber:        order.OrderNumber,
		Status:             order.Status,
		SubtotalCents:      order.SubtotalCents,
		ShippingCents:      order.ShippingCents,
		DiscountCents:      order.DiscountCents,
		TotalCents:         order.TotalCents,
		PaymentAmountCents: order.PaymentAmountCents,
		FormattedTotal:     money.FormatWithCurrency(order.TotalCents, order.Currency),
		Currency:           order.Currency,
		DiscountCode:       order.DiscountCode,
		ShippingMethodID:   order.ShippingMethodID,
		ShippingAddress:    order.ShippingAddress,
		BillingAddress:     order.BillingAddress,
		IsLayby:            order.IsLayby,
		BuyerEmail:         order.BuyerEmail,
		BuyerName:          order.BuyerName,
		PaidAt:             order.PaidAt,
		CancelledAt:        order.CancelledAt,
		Items:              make([]ItemDTO, 0, len(order.Items)),
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, ItemDTO{
			ID:               item.ID,
			ProductID:        item.ProductID,
			Name:             item.Name,
			Size:             item.Size,
			ImageRef:         item.ImageRef,
			Quantity:         item.Quantity,
			PriceAtTimeCents: item.PriceAtTimeCents,
			LineTotalCents:   item.LineTotalCents,
		})
	}
	return dto
}

func newTrackingEventDTO(event models.OrderTrackingEvent) TrackingEventDTO {
	return TrackingEventDTO{
		Status:            event.Status,
		Description:       event.Description,
		Location:          event.Location,
		Carrier:           event.Carrier,
		TrackingNumber:    event.TrackingNumber,
		EstimatedDelivery: event.EstimatedDelivery,
		Latitude:          event.Latitude,
		Longitude:         event.Longitude,
		CreatedAt:         event.CreatedAt,
	}
}
