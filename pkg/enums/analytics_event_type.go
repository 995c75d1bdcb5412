package enums

import "fmt"

// AnalyticsEventType is the event_type attribute the analytics consumer routes on.
type AnalyticsEventType string

const (
	AnalyticsEventOrderCreated       AnalyticsEventType = "order_created"
	AnalyticsEventOrderStatusChanged AnalyticsEventType = "order_status_changed"
)

func (a AnalyticsEventType) String() string { return string(a) }

func (a AnalyticsEventType) IsValid() bool {
	switch a {
	case AnalyticsEventOrderCreated, AnalyticsEventOrderStatusChanged:
		return true
	}
	return false
}

// ParseAnalyticsEventType rejects event types the analytics pipeline has no table for.
func ParseAnalyticsEventType(value string) (AnalyticsEventType, error) {
	if a := AnalyticsEventType(value); a.IsValid() {
		return a, nil
	}
	return "", fmt.Errorf("invalid analytics event type %q", value)
}
