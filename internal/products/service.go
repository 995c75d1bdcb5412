package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is the public catalog read API.
type Service interface {
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
}

type service struct {
	repo *Repository
}

// NewService wires the catalog service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	sort := input.Sort
	if sort == "" {
		sort = SortNewest
	}
	query := productListQuery{
		Category: strings.TrimSpace(input.Category),
		Query:    input.Query,
		Sort:     sort,
		Limit:    pagination.LimitWithBuffer(input.Pagination.Limit),
	}
	if raw := strings.TrimSpace(input.Pagination.Cursor); raw != "" {
		if sort == SortNewest {
			cursor, err := pagination.ParseCursor(raw)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
			}
			query.Cursor = cursor
		} else {
			cursor, err := pagination.ParseValueCursor(raw)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
			}
			query.ValueCursor = cursor
		}
	}

	rows, hasMore, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	result := &ProductListResult{Items: make([]ProductDTO, 0, len(rows))}
	for _, row := range rows {
		result.Items = append(result.Items, NewProductDTO(row))
	}
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		if sort == SortNewest {
			result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		} else {
			result.NextCursor = pagination.EncodeValueCursor(pagination.ValueCursor{Value: int64(last.PriceCents), ID: last.ID})
		}
	}
	return result, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	row, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	dto := NewProductDTO(*row)
	return &dto, nil
}
