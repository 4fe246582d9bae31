package figma

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type clientMetrics struct {
	requests  *prometheus.CounterVec
	cacheHits *prometheus.CounterVec
	shared    *prometheus.CounterVec
}

// newClientMetrics registers the client counters on reg. A nil reg yields
// working but unregistered counters.
func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	f := promauto.With(reg)
	return &clientMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "figma_requests_total",
			Help: "Requests sent to the Figma REST API by endpoint and status code.",
		}, []string{"endpoint", "status"}),
		cacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "figma_cache_hits_total",
			Help: "Requests answered from the response cache.",
		}, []string{"endpoint"}),
		shared: f.NewCounterVec(prometheus.CounterOpts{
			Name: "figma_shared_requests_total",
			Help: "Requests that joined an identical in-flight request.",
		}, []string{"endpoint"}),
	}
}
