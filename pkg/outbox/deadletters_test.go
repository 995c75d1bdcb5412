package outbox

import (
	"context"
	"encoding/json"
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

func newDeadLetters(t *testing.T) (*DeadLetters, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewDeadLetters(db.NewFromGorm(conn), NewRepository(conn), NewDLQRepository(conn), nil)
	require.NoError(t, err)
	return svc, conn
}

func seedDeadLetter(t *testing.T, conn *gorm.DB, reason enums.OutboxDLQErrorReason) models.OutboxEvent {
	t.Helper()
	msg := "publish rejected"
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		AttemptCount:  8,
		LastError:     &msg,
	}
	require.NoError(t, conn.Create(&event).Error)
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	dlq := NewDLQRepository(conn)
	require.NoError(t, dlq.InsertTx(conn, entry))
	require.NoError(t, dlq.InsertTx(conn, entry))
	return event
}

func TestDeadLettersListFiltersByReason(t *testing.T) {
	svc, conn := newDeadLetters(t)
	ctx := context.Background()
	exhausted := seedDeadLetter(t, conn, enums.OutboxDLQReasonMaxAttempts)
	seedDeadLetter(t, conn, enums.OutboxDLQReasonNonRetryable)

	all, err := svc.List(ctx, DLQFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := svc.List(ctx, DLQFilter{Reason: enums.OutboxDLQReasonMaxAttempts})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, exhausted.ID, filtered[0].EventID)
	assert.Equal(t, 8, filtered[0].AttemptCount)

	_, err = svc.List(ctx, DLQFilter{Reason: "bogus"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDeadLettersReplayResetsEvent(t *testing.T) {
	svc, conn := newDeadLetters(t)
	ctx := context.Background()
	event := seedDeadLetter(t, conn, enums.OutboxDLQReasonMaxAttempts)

	require.NoError(t, svc.Replay(ctx, event.ID))

	var reloaded models.OutboxEvent
	require.NoError(t, conn.First(&reloaded, "id = ?", event.ID).Error)
	assert.Equal(t, 0, reloaded.AttemptCount)
	assert.Nil(t, reloaded.LastError)

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxDLQ{}).Count(&remaining).Error)
	assert.Zero(t, remaining)

	err := svc.Replay(ctx, event.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeadLettersReplayRejectsPublishedEvent(t *testing.T) {
	svc, conn := newDeadLetters(t)
	event := seedDeadLetter(t, conn, enums.OutboxDLQReasonNonRetryable)
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("id = ?", event.ID).Update("published_at", time.Now().UTC()).Error)

	err := svc.Replay(context.Background(), event.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxDLQ{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}

func TestNewDeadLettersRequiresDependencies(t *testing.T) {
	_, err := NewDeadLetters(nil, nil, nil, nil)
	require.Error(t, err)
}
