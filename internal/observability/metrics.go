package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashbff",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		},
		[]string{"route", "method", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dashbff",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashbff",
			Name:      "upstream_calls_total",
			Help:      "Calls to the upstream session authority by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	SessionChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashbff",
			Name:      "session_checks_total",
			Help:      "Session checks by result",
		},
		[]string{"result"},
	)

	SSESubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dashbff",
			Name:      "sse_subscribers",
			Help:      "Number of connected Server-Sent Events subscribers",
		},
	)
)

func RecordUpstreamCall(operation, outcome string) {
	UpstreamCallsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordSessionCheck(ok bool) {
	result := "denied"
	if ok {
		result = "authenticated"
	}
	SessionChecksTotal.WithLabelValues(result).Inc()
}
