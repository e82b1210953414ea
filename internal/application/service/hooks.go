package service

import (
	"context"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
)

// Resolution outcomes reported to Metrics
const (
	TierSame           = "same_currency"
	TierCache          = "cache"
	TierStore          = "store"
	TierProvider       = "provider"
	TierCurrentPeriod  = "current_period"
	TierPreviousPeriod = "previous_period"
	TierPegged         = "pegged"
	TierCross          = "cross"
	OutcomeNoRate      = "no_rate"
	OutcomeUnsupported = "unsupported"
)

// Metrics receives engine observations
type Metrics interface {
	ObserveResolution(source, outcome string)
	ObserveProviderFetch(source string, duration time.Duration, err error)
	ObserveStoreError(operation string)
	SetCacheSize(n int)
}

// ChangeNotifier is told about rates that were persisted because they changed
type ChangeNotifier interface {
	NotifyRatesChanged(ctx context.Context, source string, rates []entity.Rate) error
}

type nopMetrics struct{}

func (nopMetrics) ObserveResolution(string, string) {}
func (nopMetrics) ObserveProviderFetch(string, time.Duration, error) {}
func (nopMetrics) ObserveStoreError(string) {}
func (nopMetrics) SetCacheSize(int) {}

type nopNotifier struct{}

func (nopNotifier) NotifyRatesChanged(context.Context, string, []entity.Rate) error { return nil }
