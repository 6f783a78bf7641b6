package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the storefront collectors.
const (
	OutcomeSuccess           = "success"
	OutcomeEmptyCart         = "empty_cart"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeError             = "error"
)

// CheckoutMetrics records checkout attempts by outcome.
type CheckoutMetrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lines    prometheus.Histogram
}

// NewCheckoutMetrics registers the checkout collectors on reg.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_checkout_duration_seconds",
		Help:    "Duration of checkout transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	lines := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_checkout_order_lines",
		Help:    "Number of lines on successfully placed orders.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
	})
	reg.MustRegister(attempts, duration, lines)
	return &CheckoutMetrics{attempts: attempts, duration: duration, lines: lines}
}

// ObserveCheckout records one attempt with its outcome and duration.
func (m *CheckoutMetrics) ObserveCheckout(outcome string, duration time.Duration) {
	if m == nil || m.attempts == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.attempts.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveOrderLines records the size of a placed order.
func (m *CheckoutMetrics) ObserveOrderLines(n int) {
	if m == nil || m.lines == nil {
		return
	}
	m.lines.Observe(float64(n))
}

// MergeMetrics records login-time cart merges.
type MergeMetrics struct {
	merges *prometheus.CounterVec
	lines  *prometheus.CounterVec
}

// NewMergeMetrics registers the merge collectors on reg.
func NewMergeMetrics(reg prometheus.Registerer) *MergeMetrics {
	if reg == nil {
		return &MergeMetrics{}
	}
	merges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_merge_total",
		Help: "Session-to-account cart merges by outcome.",
	}, []string{"outcome"})
	lines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_merge_lines_total",
		Help: "Session cart lines processed during merges.",
	}, []string{"result"})
	reg.MustRegister(merges, lines)
	return &MergeMetrics{merges: merges, lines: lines}
}

// ObserveMerge records one merge run and its merged/skipped line counts.
func (m *MergeMetrics) ObserveMerge(outcome string, merged, skipped int) {
	if m == nil || m.merges == nil {
		return
	}
	m.merges.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.lines.WithLabelValues("merged").Add(float64(merged))
	m.lines.WithLabelValues("skipped").Add(float64(skipped))
}

// PublisherMetrics records outbox publish attempts.
type PublisherMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	duration  prometheus.Histogram
}

// NewPublisherMetrics registers the outbox publisher collectors on reg.
func NewPublisherMetrics(reg prometheus.Registerer) *PublisherMetrics {
	if reg == nil {
		return &PublisherMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_outbox_published_total",
		Help: "Outbox events delivered to the broker.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_outbox_failed_total",
		Help: "Outbox publish attempts that failed.",
	}, []string{"event_type"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_outbox_batch_duration_seconds",
		Help:    "Duration of one outbox publish batch in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(published, failed, duration)
	return &PublisherMetrics{published: published, failed: failed, duration: duration}
}

// IncPublished counts one delivered event.
func (m *PublisherMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed counts one failed delivery.
func (m *PublisherMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// ObserveBatch records how long one batch took.
func (m *PublisherMetrics) ObserveBatch(duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
