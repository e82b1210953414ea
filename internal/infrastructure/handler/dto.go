package handler

import (
	"github.com/damon-houk/exchange-rate-resolver/internal/application/service"
	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
	domain "github.com/damon-houk/exchange-rate-resolver/internal/domain/service"
)

// RateResponse represents the response for the rate endpoint.
// Rate is units of To per one unit of From, as a decimal string.
type RateResponse struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Date      string `json:"date"`
	Source    string `json:"source"`
	Frequency string `json:"frequency"`
	Rate      string `json:"rate"`
}

// RefreshResponse summarises a bulk refresh
type RefreshResponse struct {
	Results []service.UpdateResult `json:"results"`
	Fetched int                    `json:"fetched"`
	Changed int                    `json:"changed"`
	Failed  int                    `json:"failed"`
}

// PeggedResponse lists the pegged-currency table
type PeggedResponse struct {
	Pegged []entity.PeggedCurrency `json:"pegged"`
}

// SourcesResponse lists the registered providers
type SourcesResponse struct {
	Sources []domain.ProviderDescriptor `json:"sources"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status  string   `json:"status"`
	Sources []string `json:"sources"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string `json:"error"`
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}
