package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

// ErrUndeliverable marks an outbox row that can never be published as stored.
// The relay dead-letters these instead of retrying.
var ErrUndeliverable = errors.New("undeliverable outbox event")

// Route binds an event type to its aggregate and destination topic.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row that passed validation and decoded cleanly.
type ResolvedEvent struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

type EventRegistry struct {
	routes   map[enums.OutboxEventType]Route
	decoders *Decoders
}

// NewEventRegistry routes every order event to the orders topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	return NewEventRegistryWith(DefaultDecoders(),
		Route{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, Topic: cfg.OrdersTopic},
		Route{EventType: enums.EventOrderStatusChanged, AggregateType: enums.AggregateOrder, Topic: cfg.OrdersTopic},
	)
}

func NewEventRegistryWith(decoders *Decoders, routes ...Route) (*EventRegistry, error) {
	if decoders == nil {
		return nil, errors.New("decoders are required")
	}
	reg := &EventRegistry{routes: make(map[enums.OutboxEventType]Route, len(routes)), decoders: decoders}
	for _, route := range routes {
		if route.Topic == "" {
			return nil, fmt.Errorf("route for %s has no topic", route.EventType)
		}
		if _, dup := reg.routes[route.EventType]; dup {
			return nil, fmt.Errorf("duplicate route for %s", route.EventType)
		}
		reg.routes[route.EventType] = route
	}
	return reg, nil
}

// Topics lists the distinct destination topics in sorted order.
func (r *EventRegistry) Topics() []string {
	set := make(map[string]struct{}, len(r.routes))
	for _, route := range r.routes {
		set[route.Topic] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// Resolve validates the row against its route and decodes the payload. Every
// failure wraps ErrUndeliverable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	route, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, undeliverable(fmt.Errorf("unsupported event type %s", event.EventType))
	case route.AggregateType != event.AggregateType:
		return nil, undeliverable(fmt.Errorf("aggregate mismatch: expected %s got %s", route.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, undeliverable(errors.New("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, undeliverable(fmt.Errorf("decode envelope: %w", err))
	}
	if envelope.EventType == "" {
		envelope.EventType = event.EventType
	}
	if envelope.EventType != event.EventType {
		return nil, undeliverable(fmt.Errorf("envelope says %s but row says %s", envelope.EventType, event.EventType))
	}
	payload, err := r.decoders.Decode(envelope)
	if err != nil {
		return nil, undeliverable(err)
	}
	return &ResolvedEvent{Route: route, Envelope: envelope, Payload: payload}, nil
}

func undeliverable(err error) error {
	return fmt.Errorf("%w: %w", ErrUndeliverable, err)
}
