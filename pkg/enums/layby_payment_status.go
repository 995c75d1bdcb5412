package enums

import "fmt"

// LaybyPaymentStatus tracks a single entry of a layby payment schedule.
type LaybyPaymentStatus string

const (
	LaybyPaymentPending   LaybyPaymentStatus = "pending"
	LaybyPaymentScheduled LaybyPaymentStatus = "scheduled"
	LaybyPaymentPaid      LaybyPaymentStatus = "paid"
)

var validLaybyPaymentStatuses = []LaybyPaymentStatus{
	LaybyPaymentPending,
	LaybyPaymentScheduled,
	LaybyPaymentPaid,
}

func (s LaybyPaymentStatus) String() string {
	return string(s)
}

func (s LaybyPaymentStatus) IsValid() bool {
	for _, candidate := range validLaybyPaymentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseLaybyPaymentStatus(value string) (LaybyPaymentStatus, error) {
	for _, candidate := range validLaybyPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid layby payment status %q", value)
}
