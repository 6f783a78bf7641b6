package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCronJobMetricsRecordsOutcomesAndRows(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("outbox-retention", time.Second, nil)
	m.ObserveRun("cart-prune", time.Second, errors.New("boom"))
	m.AddRows("outbox-retention", 12)
	m.AddRows("outbox-retention", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "storefront_cron_job_runs_total", "outcome", OutcomeError); err != nil || got != 1 {
		t.Fatalf("expected error=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "storefront_cron_job_rows_total", "job", "outbox-retention"); err != nil || got != 12 {
		t.Fatalf("expected rows=12, got %f (%v)", got, err)
	}

	var nilMetrics *CronJobMetrics
	nilMetrics.ObserveRun("x", time.Second, nil)
	nilMetrics.AddRows("x", 1)
}
