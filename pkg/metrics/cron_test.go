package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveRun("checkout-expiry", "success", 250*time.Millisecond, 4)
	m.ObserveRun("checkout-expiry", "failure", time.Second, 9)
	m.ObserveRun("", "timeout", time.Second, 0)
	m.IncSkippedCycle()

	if got := testutil.ToFloat64(m.runs.WithLabelValues("checkout-expiry", "success")); got != 1 {
		t.Fatalf("expected 1 success run, got %v", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("checkout-expiry", "failure")); got != 1 {
		t.Fatalf("expected 1 failed run, got %v", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("unknown", "timeout")); got != 1 {
		t.Fatalf("expected unnamed job under unknown, got %v", got)
	}
	if got := testutil.ToFloat64(m.affected.WithLabelValues("checkout-expiry")); got != 4 {
		t.Fatalf("affected rows should only count successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastSuccess.WithLabelValues("checkout-expiry")); got <= 0 {
		t.Fatalf("expected last success timestamp, got %v", got)
	}
	if got := testutil.ToFloat64(m.skipped); got != 1 {
		t.Fatalf("expected 1 skipped cycle, got %v", got)
	}
	if n := testutil.CollectAndCount(m.duration, "cron_job_duration_seconds"); n != 2 {
		t.Fatalf("expected 2 duration series, got %d", n)
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("job", "success", time.Second, 1)
	m.IncSkippedCycle()
	NewCronJobMetrics(nil).ObserveRun("job", "success", time.Second, 1)
}

func TestCronJobDurationHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("outbox-retention", "success", 2*time.Second, 10)
	m.ObserveRun("outbox-retention", "failure", 3*time.Second, 0)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	hist := histogramFor(families, "cron_job_duration_seconds", "outbox-retention")
	if hist == nil {
		t.Fatal("duration histogram for outbox-retention not exported")
	}
	if hist.GetSampleCount() != 2 {
		t.Fatalf("expected 2 samples, got %d", hist.GetSampleCount())
	}
	if hist.GetSampleSum() != 5 {
		t.Fatalf("expected 5s total, got %v", hist.GetSampleSum())
	}
}

func histogramFor(families []*dto.MetricFamily, name, job string) *dto.Histogram {
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "job" && label.GetValue() == job {
					return metric.GetHistogram()
				}
			}
		}
	}
	return nil
}
