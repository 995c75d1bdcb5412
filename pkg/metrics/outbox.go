package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics counts outbox rows by publish outcome.
type OutboxMetrics struct {
	outcomes *prometheus.CounterVec
}

// NewOutboxMetrics registers the outbox publisher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_total",
		Help: "Outbox rows handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(outcomes)
	return &OutboxMetrics{outcomes: outcomes}
}

func (o *OutboxMetrics) IncPublished(eventType string) {
	o.inc(eventType, "published")
}

func (o *OutboxMetrics) IncRetried(eventType string) {
	o.inc(eventType, "retried")
}

func (o *OutboxMetrics) IncDeadLettered(eventType string) {
	o.inc(eventType, "dead_lettered")
}

func (o *OutboxMetrics) inc(eventType, outcome string) {
	if o == nil || o.outcomes == nil {
		return
	}
	o.outcomes.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}
