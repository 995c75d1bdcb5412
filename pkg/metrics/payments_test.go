package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPaymentMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)
	m.IncCheckout("created")
	m.IncCheckout("created")
	m.IncNotification("duplicate")
	m.IncNotification("")
	m.IncRateLimited()

	if got := testutil.ToFloat64(m.checkouts.WithLabelValues("created")); got != 2 {
		t.Fatalf("expected created=2, got %v", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("expected unknown=1, got %v", got)
	}
	if got := testutil.ToFloat64(m.rateLimited); got != 1 {
		t.Fatalf("expected rate limited=1, got %v", got)
	}
	if n, err := testutil.GatherAndCount(reg, "payfast_notifications_total"); err != nil || n != 2 {
		t.Fatalf("expected 2 notification series, got %d (%v)", n, err)
	}
}

func TestPaymentMetricsNilSafe(t *testing.T) {
	var m *PaymentMetrics
	m.IncCheckout("created")
	m.IncRateLimited()
	m.IncNotification("applied")

	empty := NewPaymentMetrics(nil)
	empty.IncCheckout("created")
}
