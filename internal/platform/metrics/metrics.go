package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	FunnelSteps      *prometheus.CounterVec
	RateLimitDenials prometheus.Counter
	UpstreamLatency  *prometheus.HistogramVec
	OrdersCreated    prometheus.Counter
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers metrics on the given registerer. Tests pass a fresh
// prometheus.NewRegistry to avoid duplicate registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FunnelSteps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "careergate_funnel_steps_total",
			Help: "Funnel step invocations by step and outcome",
		}, []string{"step", "outcome"}),
		RateLimitDenials: factory.NewCounter(prometheus.CounterOpts{
			Name: "careergate_ratelimit_denials_total",
			Help: "Total number of analysis requests denied by the rate limiter",
		}),
		UpstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "careergate_upstream_request_duration_seconds",
			Help:    "Latency of upstream backend calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"endpoint"}),
		OrdersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "careergate_orders_created_total",
			Help: "Total number of checkout orders created",
		}),
	}
}

// ObserveFunnelStep records a step invocation outcome.
func (m *Metrics) ObserveFunnelStep(step, outcome string) {
	m.FunnelSteps.WithLabelValues(step, outcome).Inc()
}

// IncrementRateLimitDenials increments the denial counter by 1.
func (m *Metrics) IncrementRateLimitDenials() {
	m.RateLimitDenials.Inc()
}

// ObserveUpstreamLatency records the duration of one upstream call.
func (m *Metrics) ObserveUpstreamLatency(endpoint string, d time.Duration) {
	m.UpstreamLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

// IncrementOrdersCreated increments the orders counter by 1.
func (m *Metrics) IncrementOrdersCreated() {
	m.OrdersCreated.Inc()
}
