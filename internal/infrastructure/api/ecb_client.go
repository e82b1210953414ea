package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
	domain "github.com/damon-houk/exchange-rate-resolver/internal/domain/service"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	// ECBSource identifies the European Central Bank reference rates
	ECBSource = "ECB"

	ecbBaseURL = "https://data-api.ecb.europa.eu/service"
	ecbDataset = "/data/EXR/"
)

// ecbFrequencies maps frequencies to SDMX frequency codes of the EXR dataset
var ecbFrequencies = map[entity.Frequency]string{
	entity.Daily:     "D",
	entity.Monthly:   "M",
	entity.Quarterly: "Q",
}

// ECBClient fetches euro foreign exchange reference rates as SDMX CSV.
// Values are foreign units per one euro.
type ECBClient struct {
	baseURL string
	httpFetcher
}

// NewECBClient creates a new ECB data API client
func NewECBClient(baseURL string, httpClient *http.Client, log logger.Logger) *ECBClient {
	if baseURL == "" {
		baseURL = ecbBaseURL
	}

	return &ECBClient{
		baseURL:     baseURL,
		httpFetcher: newHTTPFetcher(httpClient, log),
	}
}

// Descriptor reports EUR as the base with indirect quotes
func (c *ECBClient) Descriptor() domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		Source:           ECBSource,
		BaseCurrency:     "EUR",
		QuoteConvention:  entity.Indirect,
		DefaultFrequency: entity.Daily,
		Frequencies:      []entity.Frequency{entity.Daily, entity.Monthly, entity.Quarterly},
	}
}

// FetchRates returns every observation in [start, end] for all currencies
func (c *ECBClient) FetchRates(ctx context.Context, start, end time.Time, freq entity.Frequency) ([]entity.Rate, error) {
	const op = "api.ECBClient.FetchRates"

	code, ok := ecbFrequencies[freq]
	if !ok {
		return nil, fmt.Errorf("%w: %s does not publish %s rates", entity.ErrUnknownFrequency, ECBSource, freq)
	}

	months, err := SplitByMonth(start, end)
	if err != nil {
		return nil, err
	}

	var rates []entity.Rate
	for _, m := range months {
		batch, err := c.fetchMonth(ctx, m, freq, code)
		if err != nil {
			return nil, errors.Wrap(err, op)
		}
		rates = append(rates, batch...)
	}
	return rates, nil
}

func (c *ECBClient) fetchMonth(ctx context.Context, m MonthRange, freq entity.Frequency, code string) ([]entity.Rate, error) {
	query := url.Values{}
	query.Set("startPeriod", m.Start.Format(entity.DateLayout))
	query.Set("endPeriod", m.End.Format(entity.DateLayout))
	query.Set("format", "csvdata")
	reqURL := c.baseURL + ecbDataset + code + "..EUR.SP00.A?" + query.Encode()

	body, err := c.get(ctx, reqURL, "text/csv")
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return c.parseCSV(body, freq)
}

// parseCSV reads the CURRENCY, TIME_PERIOD and OBS_VALUE columns
func (c *ECBClient) parseCSV(body []byte, freq entity.Frequency) ([]entity.Rate, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	curCol, okCur := cols["CURRENCY"]
	dateCol, okDate := cols["TIME_PERIOD"]
	valCol, okVal := cols["OBS_VALUE"]
	if !okCur || !okDate || !okVal {
		return nil, fmt.Errorf("unexpected CSV header: %v", header)
	}

	var rates []entity.Rate
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		currency, err := entity.ParseCurrency(rec[curCol])
		if err != nil {
			continue
		}
		raw := strings.TrimSpace(rec[valCol])
		if raw == "" || raw == "NaN" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil || !value.IsPositive() {
			c.logger.Warn("Skipping malformed ECB observation", map[string]interface{}{
				"currency": rec[curCol],
				"value":    raw,
			})
			continue
		}
		date, err := parsePeriod(rec[dateCol])
		if err != nil {
			return nil, err
		}

		rates = append(rates, entity.NewRate(ECBSource, freq, currency, date, value))
	}

	return rates, nil
}

// parsePeriod reads SDMX periods: 2024-03-15, 2024-03 and 2024-Q1.
// Monthly and quarterly periods are dated on their first day.
func parsePeriod(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(entity.DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return t, nil
	}

	var year, quarter int
	if _, err := fmt.Sscanf(s, "%d-Q%d", &year, &quarter); err == nil && quarter >= 1 && quarter <= 4 {
		return time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised period %q", s)
}
