// Package metrics exposes prometheus collectors for wizard activity and the
// HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-onboard/pkg/form"
)

// Metrics owns a private registry so tests and embedded servers do not
// collide on the global one.
type Metrics struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	submissions *prometheus.CounterVec
	sessions    prometheus.Counter
	requests    *prometheus.CounterVec
	durations   *prometheus.HistogramVec
}

var _ form.Observer = (*Metrics)(nil)

// New registers the collectors, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_transitions_total",
			Help: "Step transitions by operation and result.",
		}, []string{"op", "result"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_submissions_total",
			Help: "Submitted onboarding payloads by schema.",
		}, []string{"schema"}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "onboard_sessions_started_total",
			Help: "Sessions started.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboard_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(
		m.transitions,
		m.submissions,
		m.sessions,
		m.requests,
		m.durations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OnTransition implements form.Observer.
func (m *Metrics) OnTransition(op string, _, _ int, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.transitions.WithLabelValues(op, result).Inc()
}

// OnSubmit implements form.Observer.
func (m *Metrics) OnSubmit(p form.Payload) {
	m.submissions.WithLabelValues(p.SchemaID).Inc()
}

// SessionStarted counts a new session.
func (m *Metrics) SessionStarted() {
	m.sessions.Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.durations.WithLabelValues(route).Observe(elapsed.Seconds())
}
