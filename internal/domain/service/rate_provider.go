// Package service internal/domain/service/rate_provider.go
package service

import (
	"context"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
)

// ProviderDescriptor describes how a provider quotes its rates
type ProviderDescriptor struct {
	Source           string                 `json:"source"`
	BaseCurrency     entity.Currency        `json:"base_currency"`
	QuoteConvention  entity.QuoteConvention `json:"quote_convention"`
	DefaultFrequency entity.Frequency       `json:"default_frequency"`
	Frequencies      []entity.Frequency     `json:"frequencies"`
}

// Supports reports whether the provider publishes freq. A descriptor without
// an explicit list publishes its default frequency only.
func (d ProviderDescriptor) Supports(freq entity.Frequency) bool {
	if len(d.Frequencies) == 0 {
		return freq == d.DefaultFrequency
	}
	for _, f := range d.Frequencies {
		if f == freq {
			return true
		}
	}
	return false
}

// RateProvider defines the interface for remote exchange rate sources
type RateProvider interface {
	// Descriptor returns the provider's base currency, quote convention and source id
	Descriptor() ProviderDescriptor

	// FetchRates returns every known rate in the inclusive range [start, end].
	// Implementations batch requests by calendar month.
	FetchRates(ctx context.Context, start, end time.Time, freq entity.Frequency) ([]entity.Rate, error)
}
