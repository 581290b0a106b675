// Package metrics provides Prometheus instrumentation for Harrier.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every Harrier metric. All record methods are safe on a nil
// *Manager so components can run uninstrumented.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Scoring
	scoresComputed *prometheus.CounterVec
	scoreCacheHits prometheus.Counter
	scoringLatency *prometheus.HistogramVec
	budgetExceeded prometheus.Counter

	// Fraud
	fraudAssessments   *prometheus.CounterVec
	fraudIndicators    *prometheus.CounterVec
	fraudLatency       prometheus.Histogram
	checkFailures      *prometheus.CounterVec
	sideEffectFailures *prometheus.CounterVec

	// Decisions and providers
	decisions        *prometheus.CounterVec
	providerFailures *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager. Without WithRegistry it registers on
// a fresh registry that also carries the Go and process collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "harrier",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.scoresComputed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "scoring",
		Name:      "scores_computed_total",
		Help:      "Scores computed, by entity type and risk level",
	}, []string{"entity_type", "risk_level"})

	m.scoreCacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "scoring",
		Name:      "cache_hits_total",
		Help:      "Scoring requests answered from cache",
	})

	m.scoringLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "scoring",
		Name:      "latency_milliseconds",
		Help:      "Score computation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"entity_type"})

	m.budgetExceeded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "scoring",
		Name:      "budget_exceeded_total",
		Help:      "Score computations slower than the soft budget",
	})

	m.fraudAssessments = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "fraud",
		Name:      "assessments_total",
		Help:      "Fraud assessments, by risk level and recommended action",
	}, []string{"risk_level", "action"})

	m.fraudIndicators = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "fraud",
		Name:      "indicators_total",
		Help:      "Fraud indicators raised, by type and severity",
	}, []string{"type", "severity"})

	m.fraudLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "fraud",
		Name:      "latency_milliseconds",
		Help:      "Fraud detection latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.checkFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "fraud",
		Name:      "check_failures_total",
		Help:      "Fraud checks that failed or panicked",
	}, []string{"check"})

	m.sideEffectFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "fraud",
		Name:      "side_effect_failures_total",
		Help:      "Fraud response messages that could not be published or recorded",
	}, []string{"topic"})

	m.decisions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "decision",
		Name:      "outcomes_total",
		Help:      "Loan decisions, by outcome",
	}, []string{"decision"})

	m.providerFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "provider",
		Name:      "failures_total",
		Help:      "External data sources that exhausted their retries",
	}, []string{"source"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests, by route, method and status",
	}, []string{"route", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})
}

// Registry returns the registry the metrics are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// RecordScore records a computed (non-cached) score.
func (m *Manager) RecordScore(entityType, riskLevel string, latency time.Duration) {
	if m == nil {
		return
	}
	m.scoresComputed.WithLabelValues(entityType, riskLevel).Inc()
	m.scoringLatency.WithLabelValues(entityType).Observe(ms(latency))
}

// RecordScoreCacheHit records a score served from cache.
func (m *Manager) RecordScoreCacheHit() {
	if m == nil {
		return
	}
	m.scoreCacheHits.Inc()
}

// RecordBudgetExceeded records a score computation over the soft budget.
func (m *Manager) RecordBudgetExceeded() {
	if m == nil {
		return
	}
	m.budgetExceeded.Inc()
}

// RecordFraudAssessment records a completed fraud assessment.
func (m *Manager) RecordFraudAssessment(riskLevel, action string, latency time.Duration) {
	if m == nil {
		return
	}
	m.fraudAssessments.WithLabelValues(riskLevel, action).Inc()
	m.fraudLatency.Observe(ms(latency))
}

// RecordIndicator records one raised fraud indicator.
func (m *Manager) RecordIndicator(indicatorType, severity string) {
	if m == nil {
		return
	}
	m.fraudIndicators.WithLabelValues(indicatorType, severity).Inc()
}

// RecordCheckFailure records a failed fraud check.
func (m *Manager) RecordCheckFailure(check string) {
	if m == nil {
		return
	}
	m.checkFailures.WithLabelValues(check).Inc()
}

// RecordSideEffectFailure records a fraud response message that failed.
func (m *Manager) RecordSideEffectFailure(topic string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(topic).Inc()
}

// RecordDecision records a loan decision outcome.
func (m *Manager) RecordDecision(decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision).Inc()
}

// RecordProviderFailure records an external source that degraded to no data.
func (m *Manager) RecordProviderFailure(source string) {
	if m == nil {
		return
	}
	m.providerFailures.WithLabelValues(source).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func (m *Manager) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, statusClass(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(ms(duration))
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
