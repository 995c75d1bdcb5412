package discounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Service previews and redeems discount codes.
type Service interface {
	Quote(ctx context.Context, code string, subtotalCents, shippingCents int) (Result, error)
	Redeem(ctx context.Context, tx *gorm.DB, code string, subtotalCents, shippingCents int) (Result, error)
	Release(ctx context.Context, tx *gorm.DB, discountID uuid.UUID) error
}

type service struct {
	repo *Repository
	now  func() time.Time
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Quote(ctx context.Context, code string, subtotalCents, shippingCents int) (Result, error) {
	return s.resolve(ctx, s.repo, code, subtotalCents, shippingCents)
}

// Redeem resolves the code and consumes one use inside tx.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, code string, subtotalCents, shippingCents int) (Result, error) {
	if tx == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	result, err := s.resolve(ctx, repo, code, subtotalCents, shippingCents)
	if err != nil {
		return Result{}, err
	}
	ok, err := repo.IncrementUsage(ctx, result.DiscountID)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem discount code")
	}
	if !ok {
		return Result{}, mapDiscountError(ErrLimitReached, result.Code)
	}
	return result, nil
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, discountID uuid.UUID) error {
	if discountID == uuid.Nil {
		return nil
	}
	if err := s.repo.WithTx(tx).ReleaseUsage(ctx, discountID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release discount code")
	}
	return nil
}

func (s *service) resolve(ctx context.Context, repo *Repository, code string, subtotalCents, shippingCents int) (Result, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "discount code is required")
	}
	row, err := repo.FindByCode(ctx, normalized)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount code")
	}
	result, err := Evaluate(row, subtotalCents, shippingCents, s.now())
	if err != nil {
		return Result{}, mapDiscountError(err, normalized)
	}
	return result, nil
}

func mapDiscountError(err error, code string) error {
	details := map[string]any{"code": code}
	switch {
	case errors.Is(err, ErrNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "discount code not found").WithDetails(details)
	case errors.Is(err, ErrExpired):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "discount code has expired").WithDetails(details)
	case errors.Is(err, ErrLimitReached):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "discount code usage limit reached").WithDetails(details)
	case errors.Is(err, ErrBelowMinimum):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "order subtotal is below the discount minimum").WithDetails(details)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "evaluate discount code")
	}
}
