package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"

	CacheHit  = "hit"
	CacheMiss = "miss"

	LookupPoint = "point"
	LookupRange = "range"
)

// RateMetrics holds the resolution counters. A nil *RateMetrics records nothing.
type RateMetrics struct {
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
	CacheLookupsTotal       *prometheus.CounterVec
	BackfillRatesTotal      *prometheus.CounterVec
}

func NewRateMetrics(reg prometheus.Registerer) *RateMetrics {
	factory := promauto.With(reg)
	return &RateMetrics{
		ProviderRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fx_provider_requests_total",
				Help: "Requests sent to external rate providers",
			},
			[]string{"provider", "operation", "outcome"},
		),
		ProviderRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fx_provider_request_duration_seconds",
				Help:    "Latency of external rate provider requests",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
			},
			[]string{"provider", "operation"},
		),
		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fx_rate_cache_lookups_total",
				Help: "Rate store lookups by kind and result",
			},
			[]string{"kind", "result"},
		),
		BackfillRatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fx_backfill_rates_stored_total",
				Help: "Rates stored by the historical backfill",
			},
			[]string{"provider"},
		),
	}
}

func (m *RateMetrics) RecordProviderRequest(provider, operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.ProviderRequestsTotal.WithLabelValues(provider, operation, outcome).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider, operation).Observe(time.Since(started).Seconds())
}

func (m *RateMetrics) RecordCacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := CacheMiss
	if hit {
		result = CacheHit
	}
	m.CacheLookupsTotal.WithLabelValues(kind, result).Inc()
}

func (m *RateMetrics) RecordBackfillStored(provider string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.BackfillRatesTotal.WithLabelValues(provider).Add(float64(n))
}
