package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

const orderEmailConsumer = "order-emails"

type idempotencyChecker interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.State, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns order events into transactional emails for the buyer.
type Consumer struct {
	subscription *pubsub.Subscriber
	mailer       mailer.Sender
	idempotency  idempotencyChecker
	templates    *templates
	decoders     *registry.Decoders
	logg         *logger.Logger
}

// NewConsumer builds the order email consumer.
func NewConsumer(subscription *pubsub.Subscriber, sender mailer.Sender, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if sender == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	return &Consumer{
		subscription: subscription,
		mailer:       sender,
		idempotency:  manager,
		templates:    tmpl,
		decoders:     registry.DefaultDecoders(),
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if eventType != enums.EventOrderCreated && eventType != enums.EventOrderStatusChanged {
		c.logg.Debug(logCtx, "skipping event without email")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	state, err := c.idempotency.Claim(ctx, orderEmailConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	switch state {
	case idempotency.Done:
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	case idempotency.InFlight:
		c.logg.Info(logCtx, "event claimed by another worker")
		return processResult{nack: true}
	}

	email, ok, err := c.render(envelope)
	if err != nil {
		c.logg.Error(logCtx, "failed to build email", err)
		_ = c.idempotency.Release(ctx, orderEmailConsumer, eventID)
		return processResult{ack: true}
	}
	if ok {
		logCtx = c.logg.WithField(logCtx, "to", email.To)
		// Delivery is best-effort: a failed send is logged and the event is not redelivered.
		if err := c.mailer.Send(ctx, email); err != nil {
			c.logg.Error(logCtx, "order email not sent", err)
		} else {
			c.logg.Info(logCtx, "order email sent")
		}
	}
	if err := c.idempotency.Complete(ctx, orderEmailConsumer, eventID); err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "failed to mark event done")
	}
	return processResult{ack: true}
}

// render decodes the event payload and builds the email. ok is false when the
// event carries no buyer-facing message.
func (c *Consumer) render(envelope outbox.PayloadEnvelope) (mailer.Message, bool, error) {
	payload, err := c.decoders.Decode(envelope)
	if err != nil {
		return mailer.Message{}, false, err
	}
	switch event := payload.(type) {
	case payloads.OrderCreatedEvent:
		return c.templates.orderCreated(event)
	case payloads.OrderStatusChangedEvent:
		return c.templates.statusChanged(event)
	}
	return mailer.Message{}, false, nil
}
