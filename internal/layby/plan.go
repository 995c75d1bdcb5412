// Package layby computes and persists installment plans.
package layby

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
)

var (
	ErrInvalidTotal     = errors.New("layby total must be positive")
	ErrInvalidFrequency = errors.New("unknown layby frequency")
	ErrDepositTooHigh   = errors.New("layby deposit exceeds 80% of the total")
	ErrNegativeDeposit  = errors.New("layby deposit cannot be negative")
	ErrTotalTooSmall    = errors.New("layby total too small to split")
)

var minDepositPercent = decimal.NewFromInt(20)

// Plan is the computed split of a total into a deposit and equal installments.
type Plan struct {
	Frequency        enums.LaybyFrequency `json:"frequency"`
	TotalCents       int                  `json:"total_cents"`
	DepositCents     int                  `json:"deposit_cents"`
	RemainingCents   int                  `json:"remaining_cents"`
	InstallmentCount int                  `json:"installment_count"`
	InstallmentCents int                  `json:"installment_cents"`
}

// ScheduledPayment is one due date in a plan's schedule.
type ScheduledPayment struct {
	Sequence    int
	AmountCents int
	DueAt       time.Time
	Status      enums.LaybyPaymentStatus
}

// ComputePlan splits totalCents. A requested deposit below 20% is raised to the minimum.
func ComputePlan(totalCents int, frequency enums.LaybyFrequency, requestedDepositCents int) (Plan, error) {
	if totalCents <= 0 {
		return Plan{}, ErrInvalidTotal
	}
	count := frequency.InstallmentCount()
	if count == 0 {
		return Plan{}, ErrInvalidFrequency
	}
	if requestedDepositCents < 0 {
		return Plan{}, ErrNegativeDeposit
	}
	// deposit/total > 4/5 without leaving integer math
	if requestedDepositCents*5 > totalCents*4 {
		return Plan{}, ErrDepositTooHigh
	}

	minDeposit := money.PercentCeil(totalCents, minDepositPercent)
	if minDeposit*5 > totalCents*4 {
		return Plan{}, ErrTotalTooSmall
	}
	deposit := max(requestedDepositCents, minDeposit)
	remaining := totalCents - deposit

	return Plan{
		Frequency:        frequency,
		TotalCents:       totalCents,
		DepositCents:     deposit,
		RemainingCents:   remaining,
		InstallmentCount: count,
		InstallmentCents: money.DivRound(remaining, count),
	}, nil
}

// Schedule lays out the deposit (due now) followed by installments at the frequency interval.
func (p Plan) Schedule(now time.Time) []ScheduledPayment {
	interval := time.Duration(p.Frequency.IntervalDays()) * 24 * time.Hour
	out := make([]ScheduledPayment, 0, p.InstallmentCount+1)
	out = append(out, ScheduledPayment{
		Sequence:    0,
		AmountCents: p.DepositCents,
		DueAt:       now,
		Status:      enums.LaybyPaymentPending,
	})
	for i := 1; i <= p.InstallmentCount; i++ {
		out = append(out, ScheduledPayment{
			Sequence:    i,
			AmountCents: p.InstallmentCents,
			DueAt:       now.Add(time.Duration(i) * interval),
			Status:      enums.LaybyPaymentScheduled,
		})
	}
	return out
}
