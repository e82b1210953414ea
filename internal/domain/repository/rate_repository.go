// Package repository internal/domain/repository/rate_repository.go
package repository

import (
	"context"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
)

// RateRepository defines the interface for durable rate storage
type RateRepository interface {
	// LoadRates returns all stored rates dated within [minDate, maxDate]
	LoadRates(ctx context.Context, minDate, maxDate time.Time) ([]entity.Rate, error)

	// SaveRates upserts rates, overwriting rows whose stored value differs
	SaveRates(ctx context.Context, rates []entity.Rate) error

	// LoadPeggedCurrencies returns the static pegged-currency table
	LoadPeggedCurrencies(ctx context.Context) ([]entity.PeggedCurrency, error)
}
