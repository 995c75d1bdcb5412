package cartdto

import "github.com/google/uuid"

// AddItemRequest adds one unit of a product in the chosen size.
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Size      string    `json:"size" validate:"max=16"`
}

// UpdateQuantityRequest sets a line's quantity; zero removes the line.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type MergeLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Size      string    `json:"size" validate:"max=16"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=99"`
}

// MergeRequest carries a guest cart built before sign-in.
type MergeRequest struct {
	GuestCartID uuid.UUID   `json:"guest_cart_id" validate:"required"`
	Lines       []MergeLine `json:"lines" validate:"max=100,dive"`
}
