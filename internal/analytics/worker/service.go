package worker

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/analytics/router"
	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
)

const analyticsConsumerName = "order-analytics"

// Handler writes one analytics envelope.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type claimer interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.State, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type verdict int

const (
	ack verdict = iota
	nack
)

// Service consumes order events from Pub/Sub and hands them to the BigQuery
// router. Each event is claimed in Redis first so redeliveries are written once.
type Service struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	claims       claimer
	logg         *logger.Logger
}

func NewService(subscription *gcppubsub.Subscriber, handler Handler, claims claimer, logg *logger.Logger) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case claims == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{subscription: subscription, handler: handler, claims: claims, logg: logg}, nil
}

// Run blocks receiving messages until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if s.process(msgCtx, msg) == nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) verdict {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	envelope, err := types.DecodeEnvelope(msg.Data, msg.Attributes)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping malformed analytics message")
		return ack
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":     envelope.EventID,
		"event_type":   envelope.EventType.String(),
		"aggregate_id": envelope.AggregateID,
	})
	eventID, err := envelope.ID()
	if err != nil {
		s.logg.Warn(ctx, "dropping analytics message with invalid event id")
		return ack
	}

	state, err := s.claims.Claim(ctx, analyticsConsumerName, eventID)
	if err != nil {
		s.logg.Error(ctx, "claim analytics event", err)
		return nack
	}
	switch state {
	case idempotency.Done:
		s.logg.Info(ctx, "analytics event already processed")
		return ack
	case idempotency.InFlight:
		s.logg.Info(ctx, "analytics event claimed by another worker")
		return nack
	}

	err = s.handler.Handle(ctx, envelope)
	switch {
	case err == nil:
		s.logg.Info(ctx, "analytics event handled")
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Warn(ctx, "no analytics route for event")
	case !pkgerrors.IsRetryable(err):
		s.logg.Error(ctx, "analytics event rejected", err)
	default:
		s.logg.Error(ctx, "analytics event failed", err)
		if relErr := s.claims.Release(ctx, analyticsConsumerName, eventID); relErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", relErr.Error()), "release analytics claim")
		}
		return nack
	}

	if err := s.claims.Complete(ctx, analyticsConsumerName, eventID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "mark analytics event done")
	}
	return ack
}
