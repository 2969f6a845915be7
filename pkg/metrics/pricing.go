package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Quote results.
const (
	QuoteComplete     = "complete"
	QuoteMissingPrice = "missing_price"
	QuoteError        = "error"
)

// PricingMetrics records quote and budget activity.
type PricingMetrics struct {
	quotes          *prometheus.CounterVec
	quoteDuration   prometheus.Histogram
	sequenceRetries prometheus.Counter
	budgetsCreated  *prometheus.CounterVec
}

// NewPricingMetrics registers the pricing metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewPricingMetrics(reg prometheus.Registerer) *PricingMetrics {
	if reg == nil {
		return &PricingMetrics{}
	}
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinicvax_quotes_total",
		Help: "Quotes computed, by result.",
	}, []string{"result"})
	quoteDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "clinicvax_quote_duration_seconds",
		Help:    "Time spent computing a quote.",
		Buckets: prometheus.DefBuckets,
	})
	sequenceRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clinicvax_budget_sequence_retries_total",
		Help: "Budget creations retried after a sequential number conflict.",
	})
	budgetsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinicvax_budgets_created_total",
		Help: "Budgets created, by status.",
	}, []string{"status"})
	reg.MustRegister(quotes, quoteDuration, sequenceRetries, budgetsCreated)
	return &PricingMetrics{
		quotes:          quotes,
		quoteDuration:   quoteDuration,
		sequenceRetries: sequenceRetries,
		budgetsCreated:  budgetsCreated,
	}
}

// ObserveQuote records one quote computation.
func (m *PricingMetrics) ObserveQuote(result string, duration time.Duration) {
	if m == nil || m.quotes == nil {
		return
	}
	m.quotes.WithLabelValues(normalizeLabel(result)).Inc()
	m.quoteDuration.Observe(duration.Seconds())
}

// IncSequenceRetry counts one retried budget transaction.
func (m *PricingMetrics) IncSequenceRetry() {
	if m == nil || m.sequenceRetries == nil {
		return
	}
	m.sequenceRetries.Inc()
}

// IncBudgetCreated counts a persisted budget.
func (m *PricingMetrics) IncBudgetCreated(status string) {
	if m == nil || m.budgetsCreated == nil {
		return
	}
	m.budgetsCreated.WithLabelValues(normalizeLabel(status)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
