package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics counts checkout handoffs and gateway notifications.
type PaymentMetrics struct {
	checkouts     *prometheus.CounterVec
	rateLimited   prometheus.Counter
	notifications *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	rateLimited := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_rate_limited_total",
		Help: "Checkout attempts rejected by the per-user payment limit.",
	})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payfast_notifications_total",
		Help: "PayFast notifications by resulting outcome.",
	}, []string{"outcome"})
	reg.MustRegister(checkouts, rateLimited, notifications)
	return &PaymentMetrics{
		checkouts:     checkouts,
		rateLimited:   rateLimited,
		notifications: notifications,
	}
}

// IncCheckout records a checkout attempt outcome such as "created" or "failed".
func (p *PaymentMetrics) IncCheckout(outcome string) {
	if p == nil || p.checkouts == nil {
		return
	}
	p.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRateLimited records a checkout rejected before any write.
func (p *PaymentMetrics) IncRateLimited() {
	if p == nil || p.rateLimited == nil {
		return
	}
	p.rateLimited.Inc()
}

// IncNotification records a webhook outcome such as "applied", "duplicate" or "rejected".
func (p *PaymentMetrics) IncNotification(outcome string) {
	if p == nil || p.notifications == nil {
		return
	}
	p.notifications.WithLabelValues(normalizeLabel(outcome)).Inc()
}
