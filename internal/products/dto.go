package product

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/google/uuid"
)

// ProductDTO is the catalog payload returned to shoppers.
type ProductDTO struct {
	ID                  uuid.UUID `json:"id"`
	SKU                 string    `json:"sku"`
	Name                string    `json:"name"`
	Description         *string   `json:"description,omitempty"`
	Category            string    `json:"category"`
	PriceCents          int       `json:"price_cents"`
	Price               string    `json:"price"`
	CompareAtPriceCents *int      `json:"compare_at_price_cents,omitempty"`
	Sizes               []string  `json:"sizes"`
	Images              []string  `json:"images"`
	InStock             bool      `json:"in_stock"`
	Stock               int       `json:"stock"`
	CreatedAt           time.Time `json:"created_at"`
}

// NewProductDTO maps a product row to its public representation.
func NewProductDTO(p models.Product) ProductDTO {
	sizes := []string(p.Sizes)
	if sizes == nil {
		sizes = []string{}
	}
	images := []string(p.Images)
	if images == nil {
		images = []string{}
	}
	return ProductDTO{
		ID:                  p.ID,
		SKU:                 p.SKU,
		Name:                p.Name,
		Description:         p.Description,
		Category:            p.Category,
		PriceCents:          p.PriceCents,
		Price:               money.Format(p.PriceCents),
		CompareAtPriceCents: p.CompareAtPriceCents,
		Sizes:               sizes,
		Images:              images,
		InStock:             p.Stock > 0,
		Stock:               p.Stock,
		CreatedAt:           p.CreatedAt,
	}
}

// ProductListResult wraps one catalog page.
type ProductListResult struct {
	Items      []ProductDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}
