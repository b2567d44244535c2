// Package metrics holds the Prometheus collectors of the admin service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "entity_admin"

var (
	// ResolverCacheTotal counts metadata cache lookups by result ("hit" / "miss").
	ResolverCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_cache_total",
			Help:      "Entity metadata cache hits and misses",
		},
		[]string{"result"},
	)

	// QueryDuration observes list/search query latency per entity.
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Entity query duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"entity", "search"},
	)

	// QueryErrorsTotal counts failed queries per entity and error code.
	QueryErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_errors_total",
			Help:      "Total failed entity queries",
		},
		[]string{"entity", "code"},
	)

	// HTTPRequestsTotal counts admin API requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ResolverCacheTotal, QueryDuration, QueryErrorsTotal, HTTPRequestsTotal)
	})
}
