package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atvirokodosprendimai/ruleapi/internal/core/usecase"
)

// Metrics owns the Prometheus registry served on /metrics.
type Metrics struct {
	registry    *prometheus.Registry
	validations *prometheus.CounterVec
	requests    *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ruleapi_validations_total",
			Help: "Validation runs by rule set and outcome.",
		}, []string{"rule_set", "outcome"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ruleapi_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		m.validations,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// WatchDispatcher exports the dispatcher's counters.
func (m *Metrics) WatchDispatcher(stats func() usecase.OutboxDispatcherMetrics) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "ruleapi_outbox_dispatched_total",
			Help: "Outbox events published.",
		}, func() float64 { return float64(stats().DispatchSuccessTotal) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "ruleapi_outbox_failures_total",
			Help: "Outbox publish attempts that failed.",
		}, func() float64 { return float64(stats().DispatchFailureTotal) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "ruleapi_outbox_dead_total",
			Help: "Outbox events moved to dead letter.",
		}, func() float64 { return float64(stats().DispatchDeadTotal) }),
	)
}

func (m *Metrics) observeValidation(ruleSet, outcome string) {
	m.validations.WithLabelValues(ruleSet, outcome).Inc()
}

func (m *Metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
