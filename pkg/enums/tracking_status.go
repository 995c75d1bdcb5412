package enums

import "fmt"

// TrackingStatus labels an entry in the append-only order tracking log.
type TrackingStatus string

const (
	TrackingOrderPlaced      TrackingStatus = "order_placed"
	TrackingPaymentConfirmed TrackingStatus = "payment_confirmed"
	TrackingPaymentFailed    TrackingStatus = "payment_failed"
	TrackingPaymentPending   TrackingStatus = "payment_pending"
	TrackingCancelled        TrackingStatus = "cancelled"
	TrackingProcessing       TrackingStatus = "processing"
	TrackingShipped          TrackingStatus = "shipped"
	TrackingDelivered        TrackingStatus = "delivered"
	TrackingCompleted        TrackingStatus = "completed"
	TrackingCheckoutExpired  TrackingStatus = "checkout_expired"
)

var validTrackingStatuses = []TrackingStatus{
	TrackingOrderPlaced,
	TrackingPaymentConfirmed,
	TrackingPaymentFailed,
	TrackingPaymentPending,
	TrackingCancelled,
	TrackingProcessing,
	TrackingShipped,
	TrackingDelivered,
	TrackingCompleted,
	TrackingCheckoutExpired,
}

// String implements fmt.Stringer.
func (s TrackingStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TrackingStatus.
func (s TrackingStatus) IsValid() bool {
	for _, candidate := range validTrackingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// TrackingStatusFor maps an order status change to the tracking entry recorded for it.
func TrackingStatusFor(status OrderStatus) TrackingStatus {
	switch status {
	case OrderStatusPaid:
		return TrackingPaymentConfirmed
	case OrderStatusPaymentFailed:
		return TrackingPaymentFailed
	case OrderStatusPaymentPending:
		return TrackingPaymentPending
	case OrderStatusCancelled:
		return TrackingCancelled
	case OrderStatusProcessing:
		return TrackingProcessing
	case OrderStatusShipped:
		return TrackingShipped
	case OrderStatusDelivered:
		return TrackingDelivered
	case OrderStatusCompleted:
		return TrackingCompleted
	default:
		return TrackingOrderPlaced
	}
}

// ParseTrackingStatus converts raw input into a TrackingStatus.
func ParseTrackingStatus(value string) (TrackingStatus, error) {
	for _, candidate := range validTrackingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tracking status %q", value)
}
