package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// LaybyPlan is an installment plan. OrderID stays NULL until checkout links it.
type LaybyPlan struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID            `gorm:"column:user_id;type:uuid;not null"`
	OrderID          *uuid.UUID           `gorm:"column:order_id;type:uuid"`
	Frequency        enums.LaybyFrequency `gorm:"column:frequency;type:layby_frequency;not null"`
	TotalCents       int                  `gorm:"column:total_cents;not null"`
	DepositCents     int                  `gorm:"column:deposit_cents;not null"`
	RemainingCents   int                  `gorm:"column:remaining_cents;not null"`
	InstallmentCount int                  `gorm:"column:installment_count;not null"`
	InstallmentCents int                  `gorm:"column:installment_cents;not null"`
	Currency         string               `gorm:"column:currency;not null"`
	Payments         []LaybyPayment       `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// LaybyPayment is one entry of a plan's schedule. Sequence 0 is the deposit.
type LaybyPayment struct {
	ID          uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PlanID      uuid.UUID                `gorm:"column:plan_id;type:uuid;not null"`
	Sequence    int                      `gorm:"column:sequence;not null"`
	AmountCents int                      `gorm:"column:amount_cents;not null"`
	DueAt       time.Time                `gorm:"column:due_at;not null"`
	Status      enums.LaybyPaymentStatus `gorm:"column:status;type:layby_payment_status;not null"`
	PaidAt      *time.Time               `gorm:"column:paid_at"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime"`
}
