package registry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func envelopeFor(t *testing.T, eventType enums.OutboxEventType, version int, payload any) outbox.PayloadEnvelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.PayloadEnvelope{Version: version, EventID: uuid.NewString(), EventType: eventType, Data: data}
}

func TestDefaultDecodersDecodeOrderEvents(t *testing.T) {
	decoders := DefaultDecoders()
	orderID := uuid.New()

	created, err := decoders.Decode(envelopeFor(t, enums.EventOrderCreated, 1, payloads.OrderCreatedEvent{
		OrderID: orderID, OrderNumber: "SF-1001", TotalCents: 59900,
	}))
	if err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if event, ok := created.(payloads.OrderCreatedEvent); !ok || event.OrderID != orderID || event.TotalCents != 59900 {
		t.Fatalf("unexpected created payload %#v", created)
	}

	changed, err := decoders.Decode(envelopeFor(t, enums.EventOrderStatusChanged, 0, payloads.OrderStatusChangedEvent{
		OrderID: orderID, OrderNumber: "SF-1001", From: enums.OrderStatusPaid, To: enums.OrderStatusShipped,
	}))
	if err != nil {
		t.Fatalf("decode unversioned status change: %v", err)
	}
	if event, ok := changed.(payloads.OrderStatusChangedEvent); !ok || event.To != enums.OrderStatusShipped {
		t.Fatalf("unexpected status payload %#v", changed)
	}
}

func TestDecodersRejectInvalidInput(t *testing.T) {
	decoders := DefaultDecoders()

	if _, err := decoders.Decode(envelopeFor(t, enums.EventOrderCreated, 2, payloads.OrderCreatedEvent{})); !errors.Is(err, ErrNoDecoder) {
		t.Fatalf("expected ErrNoDecoder for unknown version, got %v", err)
	}
	if _, err := decoders.Decode(envelopeFor(t, enums.EventOrderCreated, 1, payloads.OrderCreatedEvent{OrderNumber: "SF-1"})); err == nil {
		t.Fatal("expected missing order id to fail validation")
	}
	if _, err := decoders.Decode(envelopeFor(t, enums.EventOrderStatusChanged, 1, map[string]string{
		"order_id": uuid.NewString(), "order_number": "SF-1", "to": "teleported",
	})); err == nil {
		t.Fatal("expected unknown status to fail validation")
	}
	if _, err := decoders.Decode(outbox.PayloadEnvelope{Version: 1, EventType: enums.EventOrderCreated, Data: json.RawMessage(`[`)}); err == nil {
		t.Fatal("expected malformed json to fail")
	}
}

func TestDecodersRegisterGuards(t *testing.T) {
	decoders := NewDecoders()
	noop := func(json.RawMessage) (any, error) { return nil, nil }

	if err := decoders.Register(enums.EventOrderCreated, 1, noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := decoders.Register(enums.EventOrderCreated, 1, noop); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if err := decoders.Register(enums.EventOrderCreated, 0, noop); err == nil {
		t.Fatal("expected invalid version error")
	}
	if err := decoders.Register(enums.EventOrderCreated, 3, nil); err == nil {
		t.Fatal("expected nil decoder error")
	}
}
