package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records runs of the maintenance jobs.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	affected *prometheus.CounterVec
}

// NewCronJobMetrics registers the cron collectors on reg.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_cron_job_duration_seconds",
		Help:    "Duration of maintenance jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cron_job_runs_total",
		Help: "Maintenance job executions by outcome.",
	}, []string{"job", "outcome"})
	affected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cron_job_rows_total",
		Help: "Rows removed by maintenance jobs.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, affected)
	return &CronJobMetrics{duration: duration, runs: runs, affected: affected}
}

// ObserveRun records one job execution.
func (c *CronJobMetrics) ObserveRun(job string, duration time.Duration, err error) {
	if c == nil || c.duration == nil {
		return
	}
	job = normalizeLabel(job)
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	c.duration.WithLabelValues(job).Observe(duration.Seconds())
	c.runs.WithLabelValues(job, outcome).Inc()
}

// AddRows counts rows a job removed.
func (c *CronJobMetrics) AddRows(job string, n int64) {
	if c == nil || c.affected == nil || n <= 0 {
		return
	}
	c.affected.WithLabelValues(normalizeLabel(job)).Add(float64(n))
}
