package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "rerankproxy"

// Backend and translation Prometheus metrics.
var (
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of rerank backend calls by HTTP status",
		},
		[]string{"status"}, // backend status code or "error"
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Rerank backend call duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	BackendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Total rerank backend transport errors",
		},
		[]string{"error_type"}, // "timeout" / "unavailable"
	)

	RerankResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_results_total",
			Help:      "Normalized rerank responses by backend response shape",
		},
		[]string{"shape"},
	)

	RerankForwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_forwarded_total",
			Help:      "Backend non-200 responses forwarded untranslated",
		},
		[]string{"status"},
	)

	RerankErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_errors_total",
			Help:      "Rerank requests answered with a proxy error",
		},
		[]string{"kind"},
	)
)

var rerankMetricsRegistered bool

// RegisterRerankMetrics registers backend and translation metrics. Must be called once from main.
func RegisterRerankMetrics() {
	if rerankMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		BackendRequestsTotal,
		BackendRequestDuration,
		BackendErrorsTotal,
		RerankResultsTotal,
		RerankForwardedTotal,
		RerankErrorsTotal,
	)
	rerankMetricsRegistered = true
}
