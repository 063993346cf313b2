package aggregator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup outcomes recorded by the lookups_total counter
const (
	OutcomeOK          = "ok"
	OutcomePartial     = "partial"
	OutcomeUnavailable = "unavailable"
	OutcomeInvalid     = "invalid"
	OutcomeCanceled    = "canceled"
)

// Metrics collects aggregator instrumentation. A nil *Metrics records nothing
type Metrics struct {
	cacheLookups     *prometheus.CounterVec
	cachePurged      prometheus.Counter
	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	lookups          *prometheus.CounterVec
}

// NewMetrics registers the aggregator collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaksmap_cache_lookups_total",
				Help: "Response cache lookups by provider and result",
			},
			[]string{"provider", "result"},
		),
		cachePurged: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "leaksmap_cache_purged_total",
				Help: "Expired cache entries removed by the janitor",
			},
		),
		providerRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaksmap_provider_requests_total",
				Help: "Upstream provider searches by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		providerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leaksmap_provider_request_duration_seconds",
				Help:    "Upstream provider search duration in seconds, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaksmap_lookups_total",
				Help: "Breach lookups by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) cacheResult(provider string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) providerRequest(provider string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.providerRequests.WithLabelValues(provider, outcome).Inc()
	m.providerDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *Metrics) lookup(outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(outcome).Inc()
}

// CachePurged records entries removed by a janitor pass
func (m *Metrics) CachePurged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cachePurged.Add(float64(n))
}
