package layby

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
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

// CreatePlan inserts the plan and its payment schedule.
func (r *Repository) CreatePlan(ctx context.Context, plan *models.LaybyPlan) error {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	payments := plan.Payments
	plan.Payments = nil
	if err := r.db.WithContext(ctx).Create(plan).Error; err != nil {
		return err
	}
	for i := range payments {
		if payments[i].ID == uuid.Nil {
			payments[i].ID = uuid.New()
		}
		payments[i].PlanID = plan.ID
	}
	if len(payments) > 0 {
		if err := r.db.WithContext(ctx).Create(&payments).Error; err != nil {
			return err
		}
	}
	plan.Payments = payments
	return nil
}

func (r *Repository) FindForUser(ctx context.Context, planID, userID uuid.UUID) (*models.LaybyPlan, error) {
	var plan models.LaybyPlan
	if err := r.db.WithContext(ctx).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		Where("id = ? AND user_id = ?", planID, userID).
		First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *Repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.LaybyPlan, error) {
	var plan models.LaybyPlan
	if err := r.db.WithContext(ctx).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		Where("order_id = ?", orderID).
		First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// LinkOrder claims an unlinked plan for orderID. It reports false when the plan is already linked.
func (r *Repository) LinkOrder(ctx context.Context, planID, userID, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.LaybyPlan{}).
		Where("id = ? AND user_id = ? AND order_id IS NULL", planID, userID).
		Updates(map[string]any{
			"order_id":   orderID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkPaymentPaid flips a pending schedule entry to paid; already-paid rows are left alone.
func (r *Repository) MarkPaymentPaid(ctx context.Context, planID uuid.UUID, sequence int, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.LaybyPayment{}).
		Where("plan_id = ? AND sequence = ? AND status <> ?", planID, sequence, enums.LaybyPaymentPaid).
		Updates(map[string]any{
			"status":  enums.LaybyPaymentPaid,
			"paid_at": paidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteOrphansBefore removes plans never linked to an order that were created before cutoff.
func (r *Repository) DeleteOrphansBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	orphans := r.db.WithContext(ctx).
		Model(&models.LaybyPlan{}).
		Select("id").
		Where("order_id IS NULL AND created_at < ?", cutoff)

	if err := r.db.WithContext(ctx).
		Where("plan_id IN (?)", orphans).
		Delete(&models.LaybyPayment{}).Error; err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Where("order_id IS NULL AND created_at < ?", cutoff).
		Delete(&models.LaybyPlan{})
	return res.RowsAffected, res.Error
}
