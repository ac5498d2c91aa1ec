package metrics

import (
	"strconv"
	"time"

	"github.com/layer-3/gatekeeper/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector records auth outcomes and HTTP traffic.
type Collector struct {
	outcomes *prometheus.CounterVec
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewCollector registers the gatekeeper metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Name:      "auth_outcomes_total",
			Help:      "Auth operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gatekeeper",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveOutcome counts an operation result; the outcome label is core.Kind(err).
func (c *Collector) ObserveOutcome(operation string, err error) {
	c.outcomes.WithLabelValues(operation, core.Kind(err)).Inc()
}

// ObserveRequest records a served HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(d.Seconds())
}
