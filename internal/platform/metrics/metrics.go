package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the identity engine.
type Metrics struct {
	Resolutions       *prometheus.CounterVec
	IdentitiesCreated prometheus.Counter
	Merges            *prometheus.CounterVec
	AuditPublished    prometheus.Counter
	ReputationLatency prometheus.Histogram
	ReputationErrors  prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "termtrust_resolutions_total",
			Help: "Identity resolutions by match type.",
		}, []string{"match_type"}),
		IdentitiesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "termtrust_identities_created_total",
			Help: "Anonymous identities created.",
		}),
		Merges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "termtrust_merges_total",
			Help: "Merge attempts by outcome.",
		}, []string{"outcome"}),
		AuditPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "termtrust_audit_events_published_total",
			Help: "Audit events handed to the publisher.",
		}),
		ReputationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "termtrust_reputation_lookup_seconds",
			Help:    "Latency of network reputation lookups.",
			Buckets: prometheus.DefBuckets,
		}),
		ReputationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "termtrust_reputation_lookup_errors_total",
			Help: "Failed or timed out reputation lookups (degraded, not fatal).",
		}),
	}
}

// ObserveReputationLatency records one reputation lookup duration.
func (m *Metrics) ObserveReputationLatency(d time.Duration) {
	m.ReputationLatency.Observe(d.Seconds())
}
