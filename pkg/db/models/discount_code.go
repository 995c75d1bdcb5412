package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// DiscountCode is a redeemable promotion. Value is percent points for percentage
// codes and currency units for fixed codes.
type DiscountCode struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string             `gorm:"column:code;not null;uniqueIndex"`
	Kind             enums.DiscountKind `gorm:"column:kind;type:discount_kind;not null"`
	Value            decimal.Decimal    `gorm:"column:value;type:numeric(12,2);not null"`
	StartsAt         time.Time          `gorm:"column:starts_at;not null"`
	EndsAt           time.Time          `gorm:"column:ends_at;not null"`
	UsageLimit       *int               `gorm:"column:usage_limit"`
	TimesUsed        int                `gorm:"column:times_used;not null;default:0"`
	MinPurchaseCents *int               `gorm:"column:min_purchase_cents"`
	MaxDiscountCents *int               `gorm:"column:max_discount_cents"`
	Active           bool               `gorm:"column:active;not null;default:true"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
