package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the Prometheus collectors exposed at /api/v1/metrics.
type metrics struct {
	claimsTotal      *prometheus.CounterVec
	submissionsTotal *prometheus.CounterVec
	niceFound        prometheus.Counter
	claimDuration    prometheus.Histogram
}

func newMetrics() *metrics {
	return &metrics{
		claimsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "niceengine_claims_total",
			Help: "Total number of fields claimed, labeled by search mode.",
		}, []string{"mode"}),
		submissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "niceengine_submissions_total",
			Help: "Total number of submissions received, labeled by outcome.",
		}, []string{"mode", "outcome"}),
		niceFound: promauto.NewCounter(prometheus.CounterOpts{
			Name: "niceengine_nice_numbers_found_total",
			Help: "Total number of nice numbers reported across all canonical submissions.",
		}),
		claimDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "niceengine_claim_to_submit_seconds",
			Help:    "Elapsed time between a claim and its accepted submission.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}
