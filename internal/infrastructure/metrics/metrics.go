package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fxresolver"

// RateMetrics holds the resolver's Prometheus collectors
type RateMetrics struct {
	Resolutions           *prometheus.CounterVec
	ProviderFetches       *prometheus.CounterVec
	ProviderFetchDuration *prometheus.HistogramVec
	StoreErrors           *prometheus.CounterVec
	CacheSize             prometheus.Gauge
}

// NewRateMetrics creates the collectors and registers them with reg
func NewRateMetrics(reg prometheus.Registerer) *RateMetrics {
	factory := promauto.With(reg)

	return &RateMetrics{
		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Rate resolutions by source and the tier that answered them",
			},
			[]string{"source", "outcome"},
		),

		ProviderFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_fetches_total",
				Help:      "Remote provider fetches by result",
			},
			[]string{"source", "result"},
		),

		ProviderFetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_fetch_duration_seconds",
				Help:      "Duration of remote provider fetches",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"source"},
		),

		StoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Rate store failures by operation",
			},
			[]string{"operation"},
		),

		CacheSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_entries",
				Help:      "Number of cached rate cells",
			},
		),
	}
}

// ObserveResolution counts a resolution outcome
func (m *RateMetrics) ObserveResolution(source, outcome string) {
	m.Resolutions.WithLabelValues(source, outcome).Inc()
}

// ObserveProviderFetch records a provider call
func (m *RateMetrics) ObserveProviderFetch(source string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ProviderFetches.WithLabelValues(source, result).Inc()
	m.ProviderFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveStoreError counts a store failure
func (m *RateMetrics) ObserveStoreError(operation string) {
	m.StoreErrors.WithLabelValues(operation).Inc()
}

// SetCacheSize publishes the cache cell count
func (m *RateMetrics) SetCacheSize(n int) {
	m.CacheSize.Set(float64(n))
}
