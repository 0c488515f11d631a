package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Latency of the recommendation HTTP handlers
	RecommendLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recommendation_http_latency_seconds",
		Help:    "Latency of recommendation handlers",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// Total number of recommendation requests served over HTTP
	RecommendRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_http_requests_total",
		Help: "Total number of recommendation HTTP requests",
	}, []string{"route", "status"})
)

func Init() {
	prometheus.MustRegister(
		RecommendLatency,
		RecommendRequests,
	)
}
