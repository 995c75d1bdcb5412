package discounts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

const (
	incrementUsageSQL = `UPDATE discount_codes SET times_used = times_used + 1, updated_at = ? WHERE id = ? AND active = true AND (usage_limit IS NULL OR times_used < usage_limit)`
	releaseUsageSQL   = `UPDATE discount_codes SET times_used = times_used - 1, updated_at = ? WHERE id = ? AND times_used > 0`
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByCode looks up a code in its stored upper-case form.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	var row models.DiscountCode
	if err := r.db.WithContext(ctx).
		Where("code = ?", NormalizeCode(code)).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Create(ctx context.Context, code *models.DiscountCode) error {
	if code.ID == uuid.Nil {
		code.ID = uuid.New()
	}
	code.Code = NormalizeCode(code.Code)
	return r.db.WithContext(ctx).Create(code).Error
}

// IncrementUsage consumes one use. It reports false when the code is inactive or exhausted.
func (r *Repository) IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(incrementUsageSQL, time.Now().UTC(), id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseUsage returns one use; it never takes times_used below zero.
func (r *Repository) ReleaseUsage(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(releaseUsageSQL, time.Now().UTC(), id).Error
}
