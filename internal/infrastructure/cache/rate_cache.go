// Package cache internal/infrastructure/cache/rate_cache.go
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
)

// BucketKey identifies the dated series of one currency from one source
type BucketKey struct {
	Source    string
	Frequency entity.Frequency
	Currency  entity.Currency
}

// bucket holds the dated values of a single series
type bucket struct {
	mu    sync.RWMutex
	dates map[time.Time]decimal.Decimal
}

// RateCache is a thread-safe in-memory store of rates keyed by
// (source, frequency, currency, date). Buckets are created under the cache
// lock; cells are written under the bucket lock.
type RateCache struct {
	mu      sync.RWMutex
	buckets map[BucketKey]*bucket
	cells   atomic.Int64
	logger  logger.Logger
}

// NewRateCache creates an empty rate cache
func NewRateCache(log logger.Logger) *RateCache {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &RateCache{
		buckets: make(map[BucketKey]*bucket),
		logger:  log,
	}
}

func keyOf(r entity.Rate) BucketKey {
	return BucketKey{Source: r.Source, Frequency: r.Frequency, Currency: r.Currency}
}

// get returns the bucket for key, or nil if none exists
func (c *RateCache) get(key BucketKey) *bucket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.buckets[key]
}

// getOrCreate returns the bucket for key, creating it under the write lock
func (c *RateCache) getOrCreate(key BucketKey) *bucket {
	if b := c.get(key); b != nil {
		return b
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another writer may have won the race
	if b, ok := c.buckets[key]; ok {
		return b
	}
	b := &bucket{dates: make(map[time.Time]decimal.Decimal)}
	c.buckets[key] = b
	return b
}

// Upsert writes the rate unless an equal value (at entity.ComparePrecision) is
// already present. It reports whether the cache changed, which callers use
// to decide what to persist.
func (c *RateCache) Upsert(rate entity.Rate) bool {
	b := c.getOrCreate(keyOf(rate))
	date := entity.DateOf(rate.Date)

	b.mu.Lock()
	existing, ok := b.dates[date]
	if ok && existing.Round(entity.ComparePrecision).Equal(rate.Value.Round(entity.ComparePrecision)) {
		b.mu.Unlock()
		return false
	}
	b.dates[date] = rate.Value
	b.mu.Unlock()

	if !ok {
		c.cells.Add(1)
	}

	if ok {
		c.logger.Warn("Rate corrected", map[string]interface{}{
			"source":    rate.Source,
			"frequency": string(rate.Frequency),
			"currency":  rate.Currency.String(),
			"date":      date.Format(entity.DateLayout),
			"old_value": existing.String(),
			"new_value": rate.Value.String(),
		})
	}

	return true
}

// Lookup returns the value cached for the exact key
func (c *RateCache) Lookup(source string, freq entity.Frequency, currency entity.Currency, date time.Time) (decimal.Decimal, bool) {
	b := c.get(BucketKey{Source: source, Frequency: freq, Currency: currency})
	if b == nil {
		return decimal.Decimal{}, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.dates[entity.DateOf(date)]
	return v, ok
}

// FindLatestOnOrBefore returns the entry with the greatest date not after date.
// The scan is linear in the bucket size.
func (c *RateCache) FindLatestOnOrBefore(source string, freq entity.Frequency, currency entity.Currency, date time.Time) (time.Time, decimal.Decimal, bool) {
	b := c.get(BucketKey{Source: source, Frequency: freq, Currency: currency})
	if b == nil {
		return time.Time{}, decimal.Decimal{}, false
	}

	target := entity.DateOf(date)
	var (
		bestDate  time.Time
		bestValue decimal.Decimal
		found     bool
	)

	b.mu.RLock()
	for d, v := range b.dates {
		if d.After(target) {
			continue
		}
		if !found || d.After(bestDate) {
			bestDate, bestValue, found = d, v, true
		}
	}
	b.mu.RUnlock()

	return bestDate, bestValue, found
}

// HasCurrency reports whether anything at all is cached for the series
func (c *RateCache) HasCurrency(source string, freq entity.Frequency, currency entity.Currency) bool {
	b := c.get(BucketKey{Source: source, Frequency: freq, Currency: currency})
	if b == nil {
		return false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.dates) > 0
}

// Size returns the number of cached cells without taking any lock
func (c *RateCache) Size() int {
	return int(c.cells.Load())
}

// Clear drops every bucket
func (c *RateCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buckets = make(map[BucketKey]*bucket)
	c.cells.Store(0)
}
