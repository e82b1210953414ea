package entity

import "errors"

var (
	// ErrUnknownCurrencyCode is returned for codes outside the ISO 4217 set
	ErrUnknownCurrencyCode = errors.New("unknown currency code")
	// ErrUnknownSource is returned when no provider is registered for a source
	ErrUnknownSource = errors.New("unknown rate source")
	// ErrUnknownFrequency is returned for unrecognised frequency names
	ErrUnknownFrequency = errors.New("unknown frequency")
	// ErrInvalidDateRange is returned when a range starts after it ends
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrUnsupportedCurrency means nothing is cached for the currency and it is not pegged
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrNoRateFound means the currency is known but has no rate on or before the date
	ErrNoRateFound = errors.New("no rate found")

	// ErrProviderFetch wraps failures of a remote rate provider
	ErrProviderFetch = errors.New("provider fetch failed")
	// ErrStore wraps failures of the persistent rate store
	ErrStore = errors.New("rate store failure")
)
