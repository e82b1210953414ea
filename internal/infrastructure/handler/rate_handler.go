// Package handler internal/infrastructure/handler/rate_handler.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/application/service"
	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
	domain "github.com/damon-houk/exchange-rate-resolver/internal/domain/service"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// RateService is the part of the engine the handler needs
type RateService interface {
	GetRate(ctx context.Context, from, to string, date time.Time, source string, freq entity.Frequency) (decimal.NullDecimal, error)
	UpdateRates(ctx context.Context) []service.UpdateResult
	PeggedCurrencies() []entity.PeggedCurrency
	Providers() []domain.ProviderDescriptor
}

// Refresher runs a bulk refresh unless one is already in progress
type Refresher interface {
	RunOnce(ctx context.Context) ([]service.UpdateResult, bool)
}

// RateHandler handles HTTP requests for exchange rates
type RateHandler struct {
	service   RateService
	refresher Refresher
	logger    logger.Logger
	now       func() time.Time
}

// NewRateHandler creates a new rate handler. A nil refresher makes
// POST /rates/refresh call the service directly.
func NewRateHandler(svc RateService, refresher Refresher, log logger.Logger) *RateHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &RateHandler{
		service:   svc,
		refresher: refresher,
		logger:    log,
		now:       time.Now,
	}
}

// GetRate handles resolving one exchange rate
func (h *RateHandler) GetRate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	vars := mux.Vars(r)
	from := strings.ToUpper(vars["from"])
	to := strings.ToUpper(vars["to"])
	query := r.URL.Query()

	h.logger.Info("Handling get rate request", map[string]interface{}{
		"request_id": requestID,
		"from":       from,
		"to":         to,
		"query":      r.URL.RawQuery,
	})

	date := entity.DateOf(h.now().UTC())
	if raw := query.Get("date"); raw != "" {
		parsed, err := time.Parse(entity.DateLayout, raw)
		if err != nil {
			h.logger.Warn("Invalid date format", map[string]interface{}{
				"request_id": requestID,
				"date":       raw,
				"error":      err.Error(),
			})
			sendErrorResponse(w, h.logger, "Invalid date format",
				"Date must be in YYYY-MM-DD format", http.StatusBadRequest, requestID)
			return
		}
		date = parsed
	}

	desc, ok := h.descriptor(query.Get("source"))
	if !ok {
		h.logger.Warn("Unknown rate source", map[string]interface{}{
			"request_id": requestID,
			"source":     query.Get("source"),
		})
		sendErrorResponse(w, h.logger, "Unknown rate source",
			fmt.Sprintf("Supported sources: %s", strings.Join(h.sourceNames(), ", ")),
			http.StatusBadRequest, requestID)
		return
	}

	freq := desc.DefaultFrequency
	if raw := query.Get("frequency"); raw != "" {
		freq = entity.Frequency(strings.ToLower(raw))
	}

	rate, err := h.service.GetRate(r.Context(), from, to, date, desc.Source, freq)
	if err != nil {
		h.handleServiceError(w, err, requestID)
		return
	}

	if !rate.Valid {
		h.logger.Warn("No exchange rate available", map[string]interface{}{
			"request_id": requestID,
			"source":     desc.Source,
			"frequency":  string(freq),
			"date":       date.Format(entity.DateLayout),
			"from":       from,
			"to":         to,
		})
		sendErrorResponse(w, h.logger, "No exchange rate available",
			fmt.Sprintf("No %s rate from %s for %s/%s on or before %s",
				freq, desc.Source, from, to, date.Format(entity.DateLayout)),
			http.StatusNotFound, requestID)
		return
	}

	h.logger.Info("Exchange rate resolved", map[string]interface{}{
		"request_id": requestID,
		"source":     desc.Source,
		"from":       from,
		"to":         to,
		"rate":       rate.Decimal.String(),
	})

	sendJSON(w, http.StatusOK, RateResponse{
		From:      from,
		To:        to,
		Date:      date.Format(entity.DateLayout),
		Source:    desc.Source,
		Frequency: string(freq),
		Rate:      rate.Decimal.String(),
	})
}

// handleServiceError maps engine errors onto HTTP statuses
func (h *RateHandler) handleServiceError(w http.ResponseWriter, err error, requestID string) {
	fields := map[string]interface{}{
		"request_id": requestID,
		"error":      err.Error(),
	}

	switch {
	case errors.Is(err, entity.ErrUnknownCurrencyCode):
		h.logger.Warn("Invalid currency code", fields)
		sendErrorResponse(w, h.logger, "Invalid currency code",
			"Currency codes must be ISO 4217 codes (e.g., EUR, GBP, CAD)", http.StatusBadRequest, requestID)
	case errors.Is(err, entity.ErrUnknownFrequency):
		h.logger.Warn("Invalid frequency", fields)
		sendErrorResponse(w, h.logger, "Invalid frequency", err.Error(), http.StatusBadRequest, requestID)
	case errors.Is(err, entity.ErrUnknownSource):
		h.logger.Warn("Unknown rate source", fields)
		sendErrorResponse(w, h.logger, "Unknown rate source", err.Error(), http.StatusBadRequest, requestID)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("Rate request cancelled", fields)
		sendErrorResponse(w, h.logger, "Service temporarily unavailable",
			"The request was cancelled before a rate could be resolved", http.StatusServiceUnavailable, requestID)
	default:
		h.logger.Error("Unexpected error in rate handler", fields)
		sendErrorResponse(w, h.logger, "Internal server error",
			"An unexpected error occurred. Please try again later.", http.StatusInternalServerError, requestID)
	}
}

// Refresh handles a manual bulk refresh of every source
func (h *RateHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	h.logger.Info("Handling refresh request", map[string]interface{}{
		"request_id": requestID,
	})

	var results []service.UpdateResult
	if h.refresher != nil {
		var ran bool
		results, ran = h.refresher.RunOnce(r.Context())
		if !ran {
			sendErrorResponse(w, h.logger, "Refresh already running",
				"A scheduled refresh is in progress. Please try again later.", http.StatusConflict, requestID)
			return
		}
	} else {
		results = h.service.UpdateRates(r.Context())
	}

	resp := RefreshResponse{Results: results}
	for _, res := range results {
		resp.Fetched += res.Fetched
		resp.Changed += res.Changed
		if res.Error != "" {
			resp.Failed++
		}
	}

	status := http.StatusOK
	if len(results) > 0 && resp.Failed == len(results) {
		status = http.StatusBadGateway
	}

	h.logger.Info("Refresh completed", map[string]interface{}{
		"request_id": requestID,
		"fetched":    resp.Fetched,
		"changed":    resp.Changed,
		"failed":     resp.Failed,
	})

	sendJSON(w, status, resp)
}

// ListPegged returns the pegged-currency table
func (h *RateHandler) ListPegged(w http.ResponseWriter, r *http.Request) {
	pegged := h.service.PeggedCurrencies()
	if pegged == nil {
		pegged = []entity.PeggedCurrency{}
	}
	sendJSON(w, http.StatusOK, PeggedResponse{Pegged: pegged})
}

// ListSources returns the registered provider descriptors
func (h *RateHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, SourcesResponse{Sources: h.service.Providers()})
}

// Health reports liveness
func (h *RateHandler) Health(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, HealthResponse{Status: "ok", Sources: h.sourceNames()})
}

// descriptor finds a provider by case-insensitive source name; empty selects the first one
func (h *RateHandler) descriptor(source string) (domain.ProviderDescriptor, bool) {
	providers := h.service.Providers()
	if len(providers) == 0 {
		return domain.ProviderDescriptor{}, false
	}
	if source == "" {
		return providers[0], true
	}
	for _, p := range providers {
		if strings.EqualFold(p.Source, source) {
			return p, true
		}
	}
	return domain.ProviderDescriptor{}, false
}

func (h *RateHandler) sourceNames() []string {
	providers := h.service.Providers()
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Source)
	}
	return names
}

// RegisterRoutes registers the rate handler routes
func (h *RateHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/rates/{from}/{to}", h.GetRate).Methods("GET")
	router.HandleFunc("/rates/refresh", h.Refresh).Methods("POST")
	router.HandleFunc("/pegged", h.ListPegged).Methods("GET")
	router.HandleFunc("/sources", h.ListSources).Methods("GET")
	router.HandleFunc("/health", h.Health).Methods("GET")

	h.logger.Info("Rate routes registered", map[string]interface{}{
		"routes": []string{
			"GET /rates/{from}/{to}",
			"POST /rates/refresh",
			"GET /pegged",
			"GET /sources",
			"GET /health",
		},
	})
}

func sendJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, log logger.Logger, message, description string, statusCode int, requestID string) {
	resp := ErrorResponse{
		Error:       message,
		Status:      statusCode,
		Description: description,
		RequestID:   requestID,
	}

	log.Debug("Sending error response", map[string]interface{}{
		"request_id":  requestID,
		"status_code": statusCode,
		"message":     message,
	})

	sendJSON(w, statusCode, resp)
}
