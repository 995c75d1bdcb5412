package layby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// PaymentDTO is a schedule entry as returned to clients.
type PaymentDTO struct {
	Sequence    int                      `json:"sequence"`
	AmountCents int                      `json:"amount_cents"`
	DueAt       time.Time                `json:"due_at"`
	Status      enums.LaybyPaymentStatus `json:"status"`
	PaidAt      *time.Time               `json:"paid_at,omitempty"`
}

// PlanDTO is a persisted plan with its schedule.
type PlanDTO struct {
	ID       uuid.UUID    `json:"id"`
	OrderID  *uuid.UUID   `json:"order_id,omitempty"`
	Currency string       `json:"currency"`
	Plan     Plan         `json:"plan"`
	Payments []PaymentDTO `json:"payments"`
}

// NewPlanDTO maps a plan row and its preloaded payments.
func NewPlanDTO(row *models.LaybyPlan) *PlanDTO {
	if row == nil {
		return nil
	}
	dto := &PlanDTO{
		ID:       row.ID,
		OrderID:  row.OrderID,
		Currency: row.Currency,
		Plan: Plan{
			Frequency:        row.Frequency,
			TotalCents:       row.TotalCents,
			DepositCents:     row.DepositCents,
			RemainingCents:   row.RemainingCents,
			InstallmentCount: row.InstallmentCount,
			InstallmentCents: row.InstallmentCents,
		},
		Payments: make([]PaymentDTO, 0, len(row.Payments)),
	}
	for _, p := range row.Payments {
		dto.Payments = append(dto.Payments, PaymentDTO{
			Sequence:    p.Sequence,
			AmountCents: p.AmountCents,
			DueAt:       p.DueAt,
			Status:      p.Status,
			PaidAt:      p.PaidAt,
		})
	}
	return dto
}

// Service persists layby plans and ties them to orders.
type Service interface {
	CreatePlan(ctx context.Context, userID uuid.UUID, totalCents int, frequency enums.LaybyFrequency, depositCents int) (*PlanDTO, error)
	LinkOrder(ctx context.Context, tx *gorm.DB, planID, userID, orderID uuid.UUID, totalCents int) (*PlanDTO, error)
	MarkDepositPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	PlanForOrder(ctx context.Context, orderID uuid.UUID) (*PlanDTO, error)
	DeleteOrphansBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo     *Repository
	tx       txRunner
	currency string
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(repo *Repository, tx txRunner, currency string, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("layby repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if currency == "" {
		currency = "ZAR"
	}
	return &service{
		repo:     repo,
		tx:       tx,
		currency: currency,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreatePlan(ctx context.Context, userID uuid.UUID, totalCents int, frequency enums.LaybyFrequency, depositCents int) (*PlanDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	plan, err := ComputePlan(totalCents, frequency, depositCents)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	now := s.now()
	row := &models.LaybyPlan{
		ID:               uuid.New(),
		UserID:           userID,
		Frequency:        plan.Frequency,
		TotalCents:       plan.TotalCents,
		DepositCents:     plan.DepositCents,
		RemainingCents:   plan.RemainingCents,
		InstallmentCount: plan.InstallmentCount,
		InstallmentCents: plan.InstallmentCents,
		Currency:         s.currency,
	}
	for _, entry := range plan.Schedule(now) {
		row.Payments = append(row.Payments, models.LaybyPayment{
			ID:          uuid.New(),
			Sequence:    entry.Sequence,
			AmountCents: entry.AmountCents,
			DueAt:       entry.DueAt,
			Status:      entry.Status,
		})
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreatePlan(ctx, row)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create layby plan")
	}
	return NewPlanDTO(row), nil
}

// LinkOrder attaches the plan to orderID inside the caller's order transaction.
func (s *service) LinkOrder(ctx context.Context, tx *gorm.DB, planID, userID, orderID uuid.UUID, totalCents int) (*PlanDTO, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	plan, err := repo.FindForUser(ctx, planID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "layby plan is unknown or already used")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load layby plan")
	}
	if plan.TotalCents != totalCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "layby plan total does not match order total").
			WithDetails(map[string]any{"plan_total_cents": plan.TotalCents, "order_total_cents": totalCents})
	}
	ok, err := repo.LinkOrder(ctx, planID, userID, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link layby plan")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "layby plan is unknown or already used")
	}
	plan.OrderID = &orderID
	return NewPlanDTO(plan), nil
}

func (s *service) MarkDepositPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	plan, err := repo.FindByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load layby plan")
	}
	changed, err := repo.MarkPaymentPaid(ctx, plan.ID, 0, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark layby deposit paid")
	}
	if changed && s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, orderID.String())
		s.logg.Info(s.logg.WithField(logCtx, "layby_plan_id", plan.ID.String()), "layby deposit paid")
	}
	return nil
}

func (s *service) PlanForOrder(ctx context.Context, orderID uuid.UUID) (*PlanDTO, error) {
	plan, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load layby plan")
	}
	return NewPlanDTO(plan), nil
}

func (s *service) DeleteOrphansBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).DeleteOrphansBefore(ctx, cutoff)
		deleted = n
		return err
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete orphaned layby plans")
	}
	return deleted, nil
}
