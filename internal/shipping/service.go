package shipping

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MethodDTO is a shipping option shown at checkout.
type MethodDTO struct {
	ID               uuid.UUID `json:"id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	Description      *string   `json:"description,omitempty"`
	PriceCents       int       `json:"price_cents"`
	Price            string    `json:"price"`
	EstimatedDaysMin int       `json:"estimated_days_min"`
	EstimatedDaysMax int       `json:"estimated_days_max"`
}

// Service lists and resolves shipping methods.
type Service interface {
	List(ctx context.Context) ([]MethodDTO, error)
	Resolve(ctx context.Context, id uuid.UUID) (*models.ShippingMethod, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipping repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context) ([]MethodDTO, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shipping methods")
	}
	out := make([]MethodDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, MethodDTO{
			ID:               row.ID,
			Code:             row.Code,
			Name:             row.Name,
			Description:      row.Description,
			PriceCents:       row.PriceCents,
			Price:            money.Format(row.PriceCents),
			EstimatedDaysMin: row.EstimatedDaysMin,
			EstimatedDaysMax: row.EstimatedDaysMax,
		})
	}
	return out, nil
}

// Resolve returns the active method or a validation error when it cannot be used.
func (s *service) Resolve(ctx context.Context, id uuid.UUID) (*models.ShippingMethod, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping_method_id is required")
	}
	row, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping method is not available")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping method")
	}
	return row, nil
}
