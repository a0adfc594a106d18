package apiclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes recorded by Metrics.
const (
	OutcomeSuccess        = "success"
	OutcomeUnauthorized   = "unauthorized"
	OutcomeSessionExpired = "session_expired"
	OutcomeFailed         = "failed"
	OutcomeNetworkError   = "network_error"
)

type Metrics struct {
	Requests      *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	Refreshes     *prometheus.CounterVec
	ForcedLogouts prometheus.Counter
}

// NewMetrics registers the client collectors with reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Logical API calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Duration of logical API calls including any refresh and retry.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		Refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "client",
			Name:      "refreshes_total",
			Help:      "Calls to the refresh endpoint by result.",
		}, []string{"result"}),
		ForcedLogouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "client",
			Name:      "forced_logouts_total",
			Help:      "Sessions cleared because a refresh failed.",
		}),
	}
}

func (m *Metrics) observeRequest(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(operation, outcome).Inc()
	m.Duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) observeRefresh(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Refreshes.WithLabelValues("failure").Inc()
		m.ForcedLogouts.Inc()
		return
	}
	m.Refreshes.WithLabelValues("success").Inc()
}
