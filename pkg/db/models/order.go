package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is a placed customer order with totals frozen at checkout.
type Order struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber        string            `gorm:"column:order_number;not null;uniqueIndex"`
	UserID             uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	Status             enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	SubtotalCents      int               `gorm:"column:subtotal_cents;not null"`
	ShippingCents      int               `gorm:"column:shipping_cents;not null"`
	DiscountCents      int               `gorm:"column:discount_cents;not null;default:0"`
	TotalCents         int               `gorm:"column:total_cents;not null"`
	PaymentAmountCents int               `gorm:"column:payment_amount_cents;not null"`
	Currency           string            `gorm:"column:currency;not null"`
	DiscountCodeID     *uuid.UUID        `gorm:"column:discount_code_id;type:uuid"`
	DiscountCode       *string           `gorm:"column:discount_code"`
	ShippingMethodID   uuid.UUID         `gorm:"column:shipping_method_id;type:uuid;not null"`
	ShippingAddress    types.Address     `gorm:"column:shipping_address;type:jsonb;not null"`
	BillingAddress     types.Address     `gorm:"column:billing_address;type:jsonb;not null"`
	PaymentIntentID    *string           `gorm:"column:payment_intent_id"`
	IsLayby            bool              `gorm:"column:is_layby;not null;default:false"`
	BuyerEmail         string            `gorm:"column:buyer_email;not null"`
	BuyerName          string            `gorm:"column:buyer_name;not null"`
	PaidAt             *time.Time        `gorm:"column:paid_at"`
	CancelledAt        *time.Time        `gorm:"column:cancelled_at"`
	Items              []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem freezes the price a product was bought at.
type OrderItem struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID        uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name             string    `gorm:"column:name;not null"`
	Size             string    `gorm:"column:size;not null;default:''"`
	ImageRef         string    `gorm:"column:image_ref;not null;default:''"`
	Quantity         int       `gorm:"column:quantity;not null"`
	PriceAtTimeCents int       `gorm:"column:price_at_time_cents;not null"`
	LineTotalCents   int       `gorm:"column:line_total_cents;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

// OrderTrackingEvent is an append-only entry in an order's tracking history.
type OrderTrackingEvent struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID            `gorm:"column:order_id;type:uuid;not null"`
	Status            enums.TrackingStatus `gorm:"column:status;type:tracking_status;not null"`
	Description       *string              `gorm:"column:description"`
	Location          *string              `gorm:"column:location"`
	Carrier           *string              `gorm:"column:carrier"`
	TrackingNumber    *string              `gorm:"column:tracking_number"`
	EstimatedDelivery *time.Time           `gorm:"column:estimated_delivery"`
	Latitude          *float64             `gorm:"column:latitude"`
	Longitude         *float64             `gorm:"column:longitude"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
}
