package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/storefront-backend/internal/analytics/writer"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by the router.
type Writer interface {
	InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error
}

// RowBuilder projects one envelope onto an order_events row.
type RowBuilder func(envelope types.Envelope) (types.OrderEventRow, error)

// Decoded adapts a typed builder into a RowBuilder. Payloads that fail to
// decode are reported as validation errors so the consumer drops them.
func Decoded[T any](build func(types.Envelope, *T) (types.OrderEventRow, error)) RowBuilder {
	return func(envelope types.Envelope) (types.OrderEventRow, error) {
		if len(envelope.Payload) == 0 {
			return types.OrderEventRow{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("empty payload for %s", envelope.EventType))
		}
		event := new(T)
		if err := json.Unmarshal(envelope.Payload, event); err != nil {
			return types.OrderEventRow{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("decode %s payload", envelope.EventType))
		}
		return build(envelope, event)
	}
}

// Router maps analytics event types to row builders and writes the result.
type Router struct {
	builders map[enums.AnalyticsEventType]RowBuilder
	writer   Writer
	logg     *logger.Logger
}

// NewRouter registers the order event builders. Overrides replace a built-in
// builder; unknown event types in overrides are ignored.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.AnalyticsEventType]RowBuilder) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	builders := map[enums.AnalyticsEventType]RowBuilder{
		enums.AnalyticsEventOrderCreated:       Decoded(orderCreatedRow),
		enums.AnalyticsEventOrderStatusChanged: Decoded(orderStatusChangedRow),
	}
	for event, custom := range overrides {
		if _, known := builders[event]; known && custom != nil {
			builders[event] = custom
		}
	}
	return &Router{builders: builders, writer: writer, logg: logg}, nil
}

// Handle builds the row for envelope and inserts it.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	build, ok := r.builders[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	row, err := build(envelope)
	if err != nil {
		return err
	}

	logCtx := r.logg.WithFields(r.logg.WithOrderID(ctx, row.OrderID), map[string]any{"to_status": row.ToStatus})
	if err := r.writer.InsertOrderEvent(logCtx, row); err != nil {
		r.logg.Error(logCtx, "insert order event row", err)
		return err
	}
	r.logg.Debug(logCtx, "order event row inserted")
	return nil
}

func orderCreatedRow(envelope types.Envelope, event *payloads.OrderCreatedEvent) (types.OrderEventRow, error) {
	items, err := analyticswriter.EncodeJSON(event.Items)
	if err != nil {
		return types.OrderEventRow{}, fmt.Errorf("encode items: %w", err)
	}
	payload, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return types.OrderEventRow{}, fmt.Errorf("encode payload: %w", err)
	}

	var units int
	for _, item := range event.Items {
		units += item.Quantity
	}
	row := baseRow(envelope, event.OrderID.String(), event.OrderNumber, event.UserID.String())
	row.ToStatus = event.Status.String()
	row.SubtotalCents = optInt(event.SubtotalCents)
	row.ShippingCents = optInt(event.ShippingCents)
	row.DiscountCents = optInt(event.DiscountCents)
	row.TotalCents = int64(event.TotalCents)
	row.Currency = event.Currency
	row.IsLayby = event.IsLayby
	row.ItemCount = optInt(units)
	row.Items = items
	row.Payload = payload
	if event.DiscountCode != nil {
		row.DiscountCode = optString(*event.DiscountCode)
	}
	return row, nil
}

func orderStatusChangedRow(envelope types.Envelope, event *payloads.OrderStatusChangedEvent) (types.OrderEventRow, error) {
	payload, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return types.OrderEventRow{}, fmt.Errorf("encode payload: %w", err)
	}
	row := baseRow(envelope, event.OrderID.String(), event.OrderNumber, event.UserID.String())
	row.FromStatus = optString(event.From.String())
	row.ToStatus = event.To.String()
	row.Reason = optString(event.Reason)
	row.TotalCents = int64(event.TotalCents)
	row.Currency = event.Currency
	row.Payload = payload
	return row, nil
}

func baseRow(envelope types.Envelope, orderID, orderNumber, userID string) types.OrderEventRow {
	return types.OrderEventRow{
		EventID:     envelope.EventID,
		EventType:   envelope.EventType.String(),
		OccurredAt:  envelope.OccurredAt,
		OrderID:     orderID,
		OrderNumber: optString(orderNumber),
		UserID:      optString(userID),
	}
}

func optString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" || value == uuid.Nil.String() {
		return nil
	}
	return &value
}

func optInt(value int) *int64 {
	v := int64(value)
	return &v
}
