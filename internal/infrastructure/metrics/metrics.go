package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects payment counters on its own registry so tests can
// build as many as they like.
type Recorder struct {
	registry *prometheus.Registry

	payments    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	webhooks    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

func New(namespace string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payments", Name: "created_total",
			Help: "Payments created, by provider, method and initial status.",
		}, []string{"provider", "method", "status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payments", Name: "transitions_total",
			Help: "Applied payment status transitions.",
		}, []string{"provider", "from", "to", "source"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payments", Name: "webhooks_total",
			Help: "Webhook deliveries by outcome.",
		}, []string{"provider", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "payments", Name: "provider_call_seconds",
			Help:    "Latency of outbound provider calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider", "operation"}),
	}
	r.registry.MustRegister(r.payments, r.transitions, r.webhooks, r.latency)
	return r
}

func (r *Recorder) PaymentCreated(provider, method, status string) {
	r.payments.With(prometheus.Labels{"provider": provider, "method": method, "status": status}).Inc()
}

func (r *Recorder) TransitionApplied(provider, from, to, source string) {
	r.transitions.With(prometheus.Labels{"provider": provider, "from": from, "to": to, "source": source}).Inc()
}

func (r *Recorder) WebhookHandled(provider, outcome string) {
	r.webhooks.With(prometheus.Labels{"provider": provider, "outcome": outcome}).Inc()
}

func (r *Recorder) ProviderCall(provider, operation string, took time.Duration) {
	r.latency.With(prometheus.Labels{"provider": provider, "operation": operation}).Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer is exposed for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}
