package product

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// SortOrder selects the catalog ordering.
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
)

// ParseSortOrder defaults to newest when empty.
func ParseSortOrder(value string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(value))) {
	case "", SortNewest:
		return SortNewest, nil
	case SortPriceAsc:
		return SortPriceAsc, nil
	case SortPriceDesc:
		return SortPriceDesc, nil
	default:
		return "", fmt.Errorf("invalid sort %q", value)
	}
}

// ListProductsInput captures browse filters and the page position.
type ListProductsInput struct {
	Category   string
	Query      string
	Sort       SortOrder
	Pagination pagination.Params
}

type productListQuery struct {
	Category    string
	Query       string
	Sort        SortOrder
	Limit       int
	Cursor      *pagination.Cursor
	ValueCursor *pagination.ValueCursor
}
