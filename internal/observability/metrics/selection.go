package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vkorchagin/agent-selector/internal/core/domain"
	"github.com/vkorchagin/agent-selector/internal/core/usecase"
)

// SelectionMetrics reports the fusion engine's observability surface:
// selection latency, per-branch outcomes, cache effectiveness, and the
// stub fallback counter that makes silent degradation visible.
type SelectionMetrics struct {
	registry *prometheus.Registry

	selectionDuration *prometheus.HistogramVec
	branchTotal       *prometheus.CounterVec
	branchDuration    *prometheus.HistogramVec
	branchCandidates  *prometheus.HistogramVec
	stubFallbackTotal *prometheus.CounterVec
	cacheTotal        *prometheus.CounterVec
}

func NewSelectionMetrics(service string) *SelectionMetrics {
	registry := prometheus.NewRegistry()

	selectionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agentsel",
			Subsystem: "selection",
			Name:      "duration_seconds",
			Help:      "Agent selection duration in seconds by mode.",
			Buckets:   prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"mode"},
	)
	branchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentsel",
			Subsystem: "selection",
			Name:      "branch_requests_total",
			Help:      "Branch calls by retrieval method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	branchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agentsel",
			Subsystem: "selection",
			Name:      "branch_duration_seconds",
			Help:      "Branch call duration in seconds by retrieval method.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method"},
	)
	branchCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agentsel",
			Subsystem: "selection",
			Name:      "branch_candidates",
			Help:      "Candidates returned per branch call.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"method"},
	)
	stubFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentsel",
			Subsystem: "selection",
			Name:      "stub_fallback_total",
			Help:      "Stub fallback substitutions by reason and tenant.",
		},
		[]string{"reason", "tenant_id"},
	)
	cacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentsel",
			Subsystem: "selection",
			Name:      "cache_requests_total",
			Help:      "Result cache lookups by outcome.",
		},
		[]string{"result"},
	)

	registry.MustRegister(selectionDuration, branchTotal, branchDuration, branchCandidates, stubFallbackTotal, cacheTotal)

	return &SelectionMetrics{
		registry:          registry,
		selectionDuration: selectionDuration,
		branchTotal:       branchTotal,
		branchDuration:    branchDuration,
		branchCandidates:  branchCandidates,
		stubFallbackTotal: stubFallbackTotal,
		cacheTotal:        cacheTotal,
	}
}

func (m *SelectionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *SelectionMetrics) ObserveSelection(mode string, duration time.Duration) {
	if mode == "" {
		mode = "default"
	}
	m.selectionDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func (m *SelectionMetrics) ObserveBranch(method domain.SourceMethod, outcome usecase.BranchOutcome, candidates int, duration time.Duration) {
	m.branchTotal.WithLabelValues(string(method), string(outcome)).Inc()
	m.branchDuration.WithLabelValues(string(method)).Observe(duration.Seconds())
	m.branchCandidates.WithLabelValues(string(method)).Observe(float64(candidates))
}

func (m *SelectionMetrics) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}

func (m *SelectionMetrics) ObserveStubFallback(reason domain.StubReason, tenantID string) {
	m.stubFallbackTotal.WithLabelValues(string(reason), tenantID).Inc()
}
