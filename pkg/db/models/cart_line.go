package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// CartLine persists one product/size pair for a user, either in the cart or saved for later.
type CartLine struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID      `gorm:"column:user_id;type:uuid;not null"`
	ProductID      uuid.UUID      `gorm:"column:product_id;type:uuid;not null"`
	Size           string         `gorm:"column:size;not null;default:''"`
	Name           string         `gorm:"column:name;not null"`
	UnitPriceCents int            `gorm:"column:unit_price_cents;not null"`
	Quantity       int            `gorm:"column:quantity;not null"`
	ImageRef       string         `gorm:"column:image_ref;not null;default:''"`
	List           enums.CartList `gorm:"column:list;type:cart_list;not null;default:'cart'"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// CartMerge records that a guest cart (or recovered order) was folded into a user's cart.
type CartMerge struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	MergeKey  string    `gorm:"column:merge_key;not null"`
	LineCount int       `gorm:"column:line_count;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
