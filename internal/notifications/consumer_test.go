package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

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

func TestProcessOrderCreatedSendsReceipt(t *testing.T) {
	consumer, sender, manager := newTestConsumer(t)
	msg := buildMessage(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{
		OrderID:            uuid.New(),
		OrderNumber:        "SF-20260101-ABCDEF12",
		BuyerEmail:         "thandi@example.com",
		BuyerName:          "Thandi",
		SubtotalCents:      90000,
		ShippingCents:      10000,
		DiscountCents:      9000,
		TotalCents:         91000,
		PaymentAmountCents: 91000,
		Currency:           "ZAR",
		Items: []payloads.OrderItemSummary{
			{Name: "Denim jacket", Size: "M", Quantity: 2, LineTotalCents: 90000},
		},
	})

	res := consumer.process(context.Background(), msg)
	if !res.ack || res.nack {
		t.Fatalf("expected ack, got %+v", res)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	email := sender.sent[0]
	if email.To != "thandi@example.com" {
		t.Fatalf("unexpected recipient %q", email.To)
	}
	if email.Subject != "Order SF-20260101-ABCDEF12 received" {
		t.Fatalf("unexpected subject %q", email.Subject)
	}
	for _, want := range []string{"ZAR 910.00", "Denim jacket", "(M)", "-ZAR 90.00"} {
		if !strings.Contains(email.HTML, want) {
			t.Fatalf("html missing %q: %s", want, email.HTML)
		}
	}
	if len(manager.claimed) != 1 || len(manager.completed) != 1 {
		t.Fatalf("expected claim and completion, got %d/%d", len(manager.claimed), len(manager.completed))
	}
}

func TestProcessStatusChangeIncludesTracking(t *testing.T) {
	consumer, sender, _ := newTestConsumer(t)
	carrier := "Courier Guy"
	tracking := "CG123456"
	msg := buildMessage(t, enums.EventOrderStatusChanged, payloads.OrderStatusChangedEvent{
		OrderID:        uuid.New(),
		OrderNumber:    "SF-1",
		BuyerEmail:     "thandi@example.com",
		From:           enums.OrderStatusProcessing,
		To:             enums.OrderStatusShipped,
		Currency:       "ZAR",
		TotalCents:     1000,
		Carrier:        &carrier,
		TrackingNumber: &tracking,
	})

	res := consumer.process(context.Background(), msg)
	if !res.ack {
		t.Fatalf("expected ack")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	if sender.sent[0].Subject != "Order SF-1 shipped" {
		t.Fatalf("unexpected subject %q", sender.sent[0].Subject)
	}
	if !strings.Contains(sender.sent[0].HTML, "CG123456") || !strings.Contains(sender.sent[0].Text, "CG123456") {
		t.Fatalf("tracking number missing")
	}
}

func TestProcessStatusWithoutEmailIsAcked(t *testing.T) {
	consumer, sender, _ := newTestConsumer(t)
	msg := buildMessage(t, enums.EventOrderStatusChanged, payloads.OrderStatusChangedEvent{
		OrderID:     uuid.New(),
		OrderNumber: "SF-4",
		BuyerEmail:  "thandi@example.com",
		From:        enums.OrderStatusPaid,
		To:          enums.OrderStatusProcessing,
	})

	res := consumer.process(context.Background(), msg)
	if !res.ack {
		t.Fatalf("expected ack")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("processing should not email the buyer")
	}
}

func TestProcessDuplicateSkipsSend(t *testing.T) {
	consumer, sender, manager := newTestConsumer(t)
	manager.state = idempotency.Done
	msg := buildMessage(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{OrderID: uuid.New(), BuyerEmail: "a@example.com", OrderNumber: "SF-3"})

	res := consumer.process(context.Background(), msg)
	if !res.ack {
		t.Fatalf("expected ack")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("duplicate should not send")
	}
}

func TestProcessInFlightNacks(t *testing.T) {
	consumer, sender, manager := newTestConsumer(t)
	manager.state = idempotency.InFlight
	msg := buildMessage(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{OrderID: uuid.New(), BuyerEmail: "a@example.com", OrderNumber: "SF-5"})

	res := consumer.process(context.Background(), msg)
	if !res.nack {
		t.Fatalf("expected nack while another worker holds the claim")
	}
	if len(sender.sent) != 0 || len(manager.completed) != 0 {
		t.Fatalf("in-flight event should not be handled")
	}
}

func TestProcessIdempotencyFailureNacks(t *testing.T) {
	consumer, sender, manager := newTestConsumer(t)
	manager.claimErr = errors.New("redis down")
	msg := buildMessage(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{OrderID: uuid.New(), BuyerEmail: "a@example.com", OrderNumber: "SF-3"})

	res := consumer.process(context.Background(), msg)
	if !res.nack {
		t.Fatalf("expected nack when idempotency store fails")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("should not send")
	}
}

func TestProcessSendFailureStillAcks(t *testing.T) {
	consumer, sender, manager := newTestConsumer(t)
	sender.err = errors.New("sendgrid 500")
	msg := buildMessage(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{OrderID: uuid.New(), BuyerEmail: "a@example.com", OrderNumber: "SF-2"})

	res := consumer.process(context.Background(), msg)
	if !res.ack || res.nack {
		t.Fatalf("send failures must not block the subscription")
	}
	if len(manager.released) != 0 || len(manager.completed) != 1 {
		t.Fatalf("marker should be completed after a send attempt")
	}
}

func TestProcessSkipsUnrelatedAndMalformed(t *testing.T) {
	consumer, sender, manager := newTestConsumer(t)

	res := consumer.process(context.Background(), &pubsub.Message{
		ID:         "msg-x",
		Data:       []byte("{}"),
		Attributes: map[string]string{"event_type": "something_else"},
	})
	if !res.ack {
		t.Fatalf("unrelated event should ack")
	}

	res = consumer.process(context.Background(), &pubsub.Message{
		ID:         "msg-y",
		Data:       []byte("not json"),
		Attributes: map[string]string{"event_type": string(enums.EventOrderCreated)},
	})
	if !res.ack {
		t.Fatalf("malformed envelope should ack")
	}
	if len(sender.sent) != 0 || len(manager.claimed) != 0 {
		t.Fatalf("nothing should be processed")
	}
}

func TestProcessInvalidPayloadReleasesMarker(t *testing.T) {
	consumer, sender, manager := newTestConsumer(t)
	msg := buildMessage(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{BuyerEmail: "a@example.com"})

	res := consumer.process(context.Background(), msg)
	if !res.ack {
		t.Fatalf("undecodable payload should ack")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("nothing should be sent")
	}
	if len(manager.released) != 1 {
		t.Fatalf("expected idempotency marker released, got %d", len(manager.released))
	}
}

func newTestConsumer(t *testing.T) (*Consumer, *stubSender, *stubManager) {
	t.Helper()
	tmpl, err := loadTemplates()
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	sender := &stubSender{}
	manager := &stubManager{}
	return &Consumer{
		mailer:      sender,
		idempotency: manager,
		templates:   tmpl,
		decoders:    registry.DefaultDecoders(),
		logg:        logger.New(logger.Options{ServiceName: "notifications-test"}),
	}, sender, manager
}

func buildMessage(t *testing.T, eventType enums.OutboxEventType, payload any) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		ID:   "msg-1",
		Data: raw,
		Attributes: map[string]string{
			"event_type":     string(eventType),
			"aggregate_type": string(enums.AggregateOrder),
		},
	}
}

type stubSender struct {
	sent []mailer.Message
	err  error
}

func (s *stubSender) Send(_ context.Context, msg mailer.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type stubManager struct {
	state     idempotency.State
	claimErr  error
	claimed   []uuid.UUID
	completed []uuid.UUID
	released  []uuid.UUID
}

func (s *stubManager) Claim(_ context.Context, _ string, eventID uuid.UUID) (idempotency.State, error) {
	s.claimed = append(s.claimed, eventID)
	return s.state, s.claimErr
}

func (s *stubManager) Complete(_ context.Context, _ string, eventID uuid.UUID) error {
	s.completed = append(s.completed, eventID)
	return nil
}

func (s *stubManager) Release(_ context.Context, _ string, eventID uuid.UUID) error {
	s.released = append(s.released, eventID)
	return nil
}
