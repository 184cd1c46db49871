package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mdlh/mdq/internal/evaluate"
)

// Metrics collects evaluation and HTTP metrics on a private registry. It
// implements evaluate.Observer so it can be handed to evaluate.NewService.
type Metrics struct {
	registry    *prometheus.Registry
	evaluations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	gaps        *prometheus.CounterVec
	requests    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with a fresh
// registry, along with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mdq_evaluations_total",
			Help: "Evaluations performed, by capability and resulting status.",
		}, []string{"capability", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mdq_evaluation_duration_seconds",
			Help:    "Wall time of one evaluation pipeline run.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"capability"}),
		gaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mdq_gaps_total",
			Help: "Gaps found by successful evaluations, by gap type.",
		}, []string{"type"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mdq_http_requests_total",
			Help: "HTTP requests served, by route pattern and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		m.evaluations,
		m.duration,
		m.gaps,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveEvaluation implements evaluate.Observer.
func (m *Metrics) ObserveEvaluation(req evaluate.Request, run *evaluate.Run, err error, elapsed time.Duration) {
	capID := req.CapabilityID
	if errors.Is(err, evaluate.ErrUnknownCapability) {
		// keep label cardinality bounded by the catalog
		capID = "unknown"
	}

	m.evaluations.WithLabelValues(capID, string(evaluate.StatusOf(run, err))).Inc()
	m.duration.WithLabelValues(capID).Observe(elapsed.Seconds())

	if err != nil || run == nil {
		return
	}
	for t, n := range run.GapSummary.ByType {
		m.gaps.WithLabelValues(string(t)).Add(float64(n))
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRequest(route string, code int) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
