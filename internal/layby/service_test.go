package layby

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func newTestService(t *testing.T) (*service, *db.Client, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewFromGorm(conn)
	svc, err := NewService(NewRepository(conn), client, "ZAR", nil)
	require.NoError(t, err)
	return svc.(*service), client, conn
}

func TestCreatePlanPersistsSchedule(t *testing.T) {
	svc, _, conn := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	dto, err := svc.CreatePlan(ctx, userID, 100000, enums.LaybyFrequencyMonthly, 0)
	require.NoError(t, err)
	assert.Nil(t, dto.OrderID)
	require.Len(t, dto.Payments, 3)
	assert.Equal(t, 20000, dto.Payments[0].AmountCents)

	var count int64
	require.NoError(t, conn.Model(&models.LaybyPayment{}).Where("plan_id = ?", dto.ID).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestCreatePlanValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CreatePlan(context.Background(), uuid.New(), 1000, enums.LaybyFrequencyWeekly, 900)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.ErrorIs(t, err, ErrDepositTooHigh)
}

func TestLinkOrderOnlyOnce(t *testing.T) {
	svc, client, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	dto, err := svc.CreatePlan(ctx, userID, 50000, enums.LaybyFrequencyWeekly, 0)
	require.NoError(t, err)

	firstOrder := uuid.New()
	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		linked, err := svc.LinkOrder(ctx, tx, dto.ID, userID, firstOrder, 50000)
		if err != nil {
			return err
		}
		assert.Equal(t, firstOrder, *linked.OrderID)
		return nil
	})
	require.NoError(t, err)

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := svc.LinkOrder(ctx, tx, dto.ID, userID, uuid.New(), 50000)
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	plan, err := svc.PlanForOrder(ctx, firstOrder)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, dto.ID, plan.ID)
}

func TestLinkOrderRejectsMismatchAndStrangers(t *testing.T) {
	svc, client, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	dto, err := svc.CreatePlan(ctx, userID, 50000, enums.LaybyFrequencyWeekly, 0)
	require.NoError(t, err)

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := svc.LinkOrder(ctx, tx, dto.ID, userID, uuid.New(), 49999)
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := svc.LinkOrder(ctx, tx, dto.ID, uuid.New(), uuid.New(), 50000)
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestMarkDepositPaid(t *testing.T) {
	svc, client, conn := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	orderID := uuid.New()

	dto, err := svc.CreatePlan(ctx, userID, 40000, enums.LaybyFrequencyFortnightly, 0)
	require.NoError(t, err)
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := svc.LinkOrder(ctx, tx, dto.ID, userID, orderID, 40000)
		return err
	}))

	for i := 0; i < 2; i++ {
		require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
			return svc.MarkDepositPaid(ctx, tx, orderID)
		}))
	}

	var deposit models.LaybyPayment
	require.NoError(t, conn.Where("plan_id = ? AND sequence = 0", dto.ID).First(&deposit).Error)
	assert.Equal(t, enums.LaybyPaymentPaid, deposit.Status)
	assert.NotNil(t, deposit.PaidAt)

	// orders without a plan are ignored
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.MarkDepositPaid(ctx, tx, uuid.New())
	}))
}

func TestDeleteOrphansBefore(t *testing.T) {
	svc, client, conn := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	orphan, err := svc.CreatePlan(ctx, userID, 10000, enums.LaybyFrequencyMonthly, 0)
	require.NoError(t, err)
	linked, err := svc.CreatePlan(ctx, userID, 10000, enums.LaybyFrequencyMonthly, 0)
	require.NoError(t, err)
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := svc.LinkOrder(ctx, tx, linked.ID, userID, uuid.New(), 10000)
		return err
	}))
	old := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, conn.Model(&models.LaybyPlan{}).Where("id IN ?", []uuid.UUID{orphan.ID, linked.ID}).Update("created_at", old).Error)

	fresh, err := svc.CreatePlan(ctx, userID, 10000, enums.LaybyFrequencyMonthly, 0)
	require.NoError(t, err)

	deleted, err := svc.DeleteOrphansBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []models.LaybyPlan
	require.NoError(t, conn.Order("created_at ASC").Find(&remaining).Error)
	ids := []uuid.UUID{}
	for _, p := range remaining {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{linked.ID, fresh.ID}, ids)

	var payments int64
	require.NoError(t, conn.Model(&models.LaybyPayment{}).Where("plan_id = ?", orphan.ID).Count(&payments).Error)
	assert.Zero(t, payments)
}
