// Package metrics defines the Prometheus metrics of the booking session client.
//
// Metrics live on a dedicated registry served by the server's /metrics route, so
// tests can construct servers repeatedly without duplicate registration panics.
//
// Naming follows Prometheus conventions:
//   - booking_ prefix for all metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every metric defined here plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

var (
	// AuthAPIRequestDurationSeconds times calls to the remote auth API by endpoint and outcome.
	AuthAPIRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booking_auth_api_request_duration_seconds",
			Help:    "Duration of remote auth API requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "outcome"},
	)

	// SessionTransitionsTotal counts committed session state transitions.
	SessionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_session_transitions_total",
			Help: "Total number of session state transitions by kind, source and target state.",
		},
		[]string{"kind", "from", "to"},
	)

	// RejectedOperationsTotal counts operations refused because another one was in flight.
	RejectedOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_session_rejected_operations_total",
			Help: "Total number of session operations rejected while another was in flight.",
		},
		[]string{"kind", "operation"},
	)

	// AuthEventsTotal counts cross-tab auth events by kind and direction (published/received).
	AuthEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_auth_events_total",
			Help: "Total number of cross-tab auth events.",
		},
		[]string{"kind", "direction"},
	)

	// GuardDecisionsTotal counts route guard outcomes.
	GuardDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_guard_decisions_total",
			Help: "Total number of route guard decisions by action.",
		},
		[]string{"action"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		AuthAPIRequestDurationSeconds,
		SessionTransitionsTotal,
		RejectedOperationsTotal,
		AuthEventsTotal,
		GuardDecisionsTotal,
	)
}

// ObserveAuthAPIRequest records a finished remote auth API call.
func ObserveAuthAPIRequest(endpoint string, err error, started time.Time) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	AuthAPIRequestDurationSeconds.WithLabelValues(endpoint, outcome).Observe(time.Since(started).Seconds())
}
