package recommendation

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_cache_requests_total",
			Help: "Recommendation cache lookups by result (hit, miss).",
		},
		[]string{"result"},
	)

	SourceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_source_failures_total",
			Help: "Failed reads from recommendation data sources by source.",
		},
		[]string{"source"},
	)

	RecommendationsServedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_served_total",
			Help: "Recommendations returned to callers by type.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(CacheRequestsTotal, SourceFailuresTotal, RecommendationsServedTotal)
}
