package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DeadLetter is the operator view of an event the publisher gave up on.
type DeadLetter struct {
	EventID      uuid.UUID                  `json:"event_id"`
	EventType    enums.OutboxEventType      `json:"event_type"`
	AggregateID  uuid.UUID                  `json:"aggregate_id"`
	Reason       enums.OutboxDLQErrorReason `json:"reason"`
	ErrorMessage *string                    `json:"error_message,omitempty"`
	AttemptCount int                        `json:"attempt_count"`
	FailedAt     time.Time                  `json:"failed_at"`
	Payload      json.RawMessage            `json:"payload"`
}

// DeadLetters lets operators inspect dead lettered events and queue them for another publish.
type DeadLetters struct {
	tx     txRunner
	events *Repository
	dlq    *DLQRepository
	logg   *logger.Logger
}

func NewDeadLetters(tx txRunner, events *Repository, dlq *DLQRepository, logg *logger.Logger) (*DeadLetters, error) {
	switch {
	case tx == nil:
		return nil, errors.New("transaction runner is required")
	case events == nil:
		return nil, errors.New("outbox repository is required")
	case dlq == nil:
		return nil, errors.New("dlq repository is required")
	}
	return &DeadLetters{tx: tx, events: events, dlq: dlq, logg: logg}, nil
}

func (d *DeadLetters) List(ctx context.Context, filter DLQFilter) ([]DeadLetter, error) {
	if filter.Reason != "" && !filter.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown dead letter reason")
	}
	if filter.EventType != "" && !filter.EventType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown event type")
	}
	rows, err := d.dlq.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters")
	}
	out := make([]DeadLetter, 0, len(rows))
	for _, row := range rows {
		out = append(out, DeadLetter{
			EventID:      row.EventID,
			EventType:    row.EventType,
			AggregateID:  row.AggregateID,
			Reason:       row.ErrorReason,
			ErrorMessage: row.ErrorMessage,
			AttemptCount: row.AttemptCount,
			FailedAt:     row.FailedAt,
			Payload:      row.Payload,
		})
	}
	return out, nil
}

// Replay resets the outbox row behind a dead letter so the publisher picks it up
// again, then drops the dead letter. Events that were published in the meantime
// or already purged cannot be replayed.
func (d *DeadLetters) Replay(ctx context.Context, eventID uuid.UUID) error {
	err := d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		entry, err := d.dlq.FindByEventIDTx(tx, eventID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dead letter")
		}
		reset, err := d.events.ResetForReplayTx(tx, entry.EventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset outbox event")
		}
		if !reset {
			return pkgerrors.New(pkgerrors.CodeConflict, "outbox event is no longer pending")
		}
		if err := d.dlq.DeleteTx(tx, entry.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete dead letter")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if d.logg != nil {
		d.logg.Info(d.logg.WithField(ctx, "event_id", eventID.String()), "dead letter queued for replay")
	}
	return nil
}
