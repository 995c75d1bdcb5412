package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// ErrNoDecoder is returned for event type and version pairs nobody registered.
var ErrNoDecoder = errors.New("no payload decoder registered")

// Decoder turns the data section of an outbox envelope into a typed payload.
type Decoder func(data json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// Decoders resolves payload decoders by event type and schema version.
type Decoders struct {
	mu    sync.RWMutex
	byKey map[decoderKey]Decoder
}

func NewDecoders() *Decoders {
	return &Decoders{byKey: make(map[decoderKey]Decoder)}
}

// DefaultDecoders knows every order event the publisher emits.
func DefaultDecoders() *Decoders {
	d := NewDecoders()
	d.mustRegister(enums.EventOrderCreated, 1, typedDecoder(func(e *payloads.OrderCreatedEvent) error {
		return requireOrder(e.OrderID, e.OrderNumber)
	}))
	d.mustRegister(enums.EventOrderStatusChanged, 1, typedDecoder(func(e *payloads.OrderStatusChangedEvent) error {
		if err := requireOrder(e.OrderID, e.OrderNumber); err != nil {
			return err
		}
		if !e.To.IsValid() {
			return fmt.Errorf("unknown target status %q", e.To)
		}
		return nil
	}))
	return d
}

func (d *Decoders) Register(eventType enums.OutboxEventType, version int, decoder Decoder) error {
	if decoder == nil {
		return fmt.Errorf("nil decoder for %s@v%d", eventType, version)
	}
	if version < 1 {
		return fmt.Errorf("invalid schema version %d for %s", version, eventType)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	key := decoderKey{eventType: eventType, version: version}
	if _, exists := d.byKey[key]; exists {
		return fmt.Errorf("decoder for %s@v%d already registered", eventType, version)
	}
	d.byKey[key] = decoder
	return nil
}

func (d *Decoders) mustRegister(eventType enums.OutboxEventType, version int, decoder Decoder) {
	if err := d.Register(eventType, version, decoder); err != nil {
		panic(err)
	}
}

// Decode decodes envelope.Data with the decoder for its type and version.
// Envelopes written before versioning carry version 0 and decode as v1.
func (d *Decoders) Decode(envelope outbox.PayloadEnvelope) (any, error) {
	version := envelope.Version
	if version == 0 {
		version = 1
	}
	d.mu.RLock()
	decoder, ok := d.byKey[decoderKey{eventType: envelope.EventType, version: version}]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s@v%d", ErrNoDecoder, envelope.EventType, version)
	}
	if len(envelope.Data) == 0 {
		return nil, fmt.Errorf("empty %s payload", envelope.EventType)
	}
	return decoder(envelope.Data)
}

func typedDecoder[T any](validate func(*T) error) Decoder {
	return func(data json.RawMessage) (any, error) {
		var payload T
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decode %T: %w", payload, err)
		}
		if err := validate(&payload); err != nil {
			return nil, fmt.Errorf("invalid %T: %w", payload, err)
		}
		return payload, nil
	}
}

func requireOrder(id uuid.UUID, number string) error {
	if id == uuid.Nil {
		return errors.New("order_id missing")
	}
	if number == "" {
		return errors.New("order_number missing")
	}
	return nil
}
