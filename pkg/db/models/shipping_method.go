package models

import (
	"time"

	"github.com/google/uuid"
)

// ShippingMethod is a selectable delivery option with a flat price.
type ShippingMethod struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string    `gorm:"column:code;not null;uniqueIndex"`
	Name             string    `gorm:"column:name;not null"`
	Description      *string   `gorm:"column:description"`
	PriceCents       int       `gorm:"column:price_cents;not null"`
	EstimatedDaysMin int       `gorm:"column:estimated_days_min;not null;default:1"`
	EstimatedDaysMax int       `gorm:"column:estimated_days_max;not null;default:5"`
	IsActive         bool      `gorm:"column:is_active;not null;default:true"`
	SortOrder        int       `gorm:"column:sort_order;not null;default:0"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
