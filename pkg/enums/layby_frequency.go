package enums

import "fmt"

// LaybyFrequency controls how often layby installments fall due.
type LaybyFrequency string

const (
	LaybyFrequencyWeekly      LaybyFrequency = "weekly"
	LaybyFrequencyFortnightly LaybyFrequency = "fortnightly"
	LaybyFrequencyMonthly     LaybyFrequency = "monthly"
)

var validLaybyFrequencies = []LaybyFrequency{
	LaybyFrequencyWeekly,
	LaybyFrequencyFortnightly,
	LaybyFrequencyMonthly,
}

func (f LaybyFrequency) String() string {
	return string(f)
}

func (f LaybyFrequency) IsValid() bool {
	for _, candidate := range validLaybyFrequencies {
		if candidate == f {
			return true
		}
	}
	return false
}

// InstallmentCount returns the number of installments after the deposit, or 0 for unknown values.
func (f LaybyFrequency) InstallmentCount() int {
	switch f {
	case LaybyFrequencyWeekly:
		return 8
	case LaybyFrequencyFortnightly:
		return 4
	case LaybyFrequencyMonthly:
		return 2
	default:
		return 0
	}
}

// IntervalDays is the gap between consecutive installment due dates.
func (f LaybyFrequency) IntervalDays() int {
	switch f {
	case LaybyFrequencyWeekly:
		return 7
	case LaybyFrequencyFortnightly:
		return 14
	case LaybyFrequencyMonthly:
		return 30
	default:
		return 0
	}
}

func ParseLaybyFrequency(value string) (LaybyFrequency, error) {
	for _, candidate := range validLaybyFrequencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid layby frequency %q", value)
}
