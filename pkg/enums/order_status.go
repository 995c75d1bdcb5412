package enums

import "fmt"

// OrderStatus tracks the lifecycle of a customer order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusPaymentPending OrderStatus = "payment_pending"
	OrderStatusPaymentFailed  OrderStatus = "payment_failed"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCompleted      OrderStatus = "completed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusPaymentPending,
	OrderStatusPaymentFailed,
	OrderStatusCancelled,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCompleted,
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {
		OrderStatusPaid,
		OrderStatusPaymentFailed,
		OrderStatusPaymentPending,
		OrderStatusCancelled,
	},
	OrderStatusPaymentPending: {
		OrderStatusPaid,
		OrderStatusPaymentFailed,
		OrderStatusCancelled,
	},
	OrderStatusPaymentFailed: {
		OrderStatusPaid,
		OrderStatusPaymentPending,
		OrderStatusCancelled,
	},
	OrderStatusPaid:       {OrderStatusProcessing},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusCompleted},
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// SourcesFor lists every status that may legally move to target.
func SourcesFor(target OrderStatus) []OrderStatus {
	sources := make([]OrderStatus, 0, 3)
	for _, from := range validOrderStatuses {
		if from.CanTransitionTo(target) {
			sources = append(sources, from)
		}
	}
	return sources
}

// IsCancellable reports whether the customer may still cancel the order.
func (s OrderStatus) IsCancellable() bool {
	return s.CanTransitionTo(OrderStatusCancelled)
}

// IsPaymentState reports whether s is owned by payment reconciliation.
func (s OrderStatus) IsPaymentState() bool {
	switch s {
	case OrderStatusPaid, OrderStatusPaymentPending, OrderStatusPaymentFailed:
		return true
	default:
		return false
	}
}

// IsFulfillment reports whether s belongs to the post-payment fulfillment chain.
func (s OrderStatus) IsFulfillment() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCompleted:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
