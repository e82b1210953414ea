package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRateMetrics(t *testing.T) {
	m := NewRateMetrics(prometheus.NewRegistry())

	m.ObserveResolution("ECB", "cache")
	m.ObserveResolution("ECB", "cache")
	m.ObserveResolution("ECB", "no_rate")
	m.ObserveProviderFetch("BOC", 120*time.Millisecond, nil)
	m.ObserveProviderFetch("BOC", 3*time.Second, errors.New("timeout"))
	m.ObserveStoreError("save")
	m.SetCacheSize(42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("ECB", "cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("ECB", "no_rate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderFetches.WithLabelValues("BOC", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderFetches.WithLabelValues("BOC", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrors.WithLabelValues("save")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.CacheSize))
}
