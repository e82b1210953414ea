package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
	domain "github.com/damon-houk/exchange-rate-resolver/internal/domain/service"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	// TreasurySource identifies the US Treasury Reporting Rates of Exchange
	TreasurySource = "TREASURY"

	treasuryBaseURL  = "https://api.fiscaldata.treasury.gov/services/api/fiscal_service"
	exchangeRatePath = "/v1/accounting/od/rates_of_exchange"
	treasuryPageSize = 1000
)

// treasuryCurrencies maps the Treasury's country-currency descriptions to ISO codes.
// Descriptions that are absent are skipped.
var treasuryCurrencies = map[string]entity.Currency{
	"Argentina-Peso":              "ARS",
	"Australia-Dollar":            "AUD",
	"Bahrain-Dinar":               "BHD",
	"Brazil-Real":                 "BRL",
	"Canada-Dollar":               "CAD",
	"Chile-Peso":                  "CLP",
	"China-Renminbi":              "CNY",
	"Colombia-Peso":               "COP",
	"Czech Republic-Koruna":       "CZK",
	"Denmark-Krone":               "DKK",
	"Egypt-Pound":                 "EGP",
	"Euro Zone-Euro":              "EUR",
	"Hong Kong-Dollar":            "HKD",
	"Hungary-Forint":              "HUF",
	"India-Rupee":                 "INR",
	"Indonesia-Rupiah":            "IDR",
	"Israel-Shekel":               "ILS",
	"Japan-Yen":                   "JPY",
	"Jordan-Dinar":                "JOD",
	"Kenya-Shilling":              "KES",
	"Korea-Won":                   "KRW",
	"Kuwait-Dinar":                "KWD",
	"Malaysia-Ringgit":            "MYR",
	"Mexico-Peso":                 "MXN",
	"Morocco-Dirham":              "MAD",
	"New Zealand-Dollar":          "NZD",
	"Nigeria-Naira":               "NGN",
	"Norway-Krone":                "NOK",
	"Oman-Rial":                   "OMR",
	"Pakistan-Rupee":              "PKR",
	"Peru-Sol":                    "PEN",
	"Philippines-Peso":            "PHP",
	"Poland-Zloty":                "PLN",
	"Qatar-Riyal":                 "QAR",
	"Romania-New Leu":             "RON",
	"Saudi Arabia-Riyal":          "SAR",
	"Singapore-Dollar":            "SGD",
	"South Africa-Rand":           "ZAR",
	"Sweden-Krona":                "SEK",
	"Switzerland-Franc":           "CHF",
	"Taiwan-Dollar":               "TWD",
	"Thailand-Baht":               "THB",
	"Turkey-New Lira":             "TRY",
	"United Arab Emirates-Dirham": "AED",
	"United Kingdom-Pound":        "GBP",
	"Vietnam-Dong":                "VND",
}

// TreasuryAPIClient fetches quarterly rates from the Treasury fiscal data API.
// Values are foreign units per one US dollar.
type TreasuryAPIClient struct {
	baseURL string
	httpFetcher
}

// NewTreasuryAPIClient creates a new Treasury API client
func NewTreasuryAPIClient(baseURL string, httpClient *http.Client, log logger.Logger) *TreasuryAPIClient {
	if baseURL == "" {
		baseURL = treasuryBaseURL
	}

	return &TreasuryAPIClient{
		baseURL:     baseURL,
		httpFetcher: newHTTPFetcher(httpClient, log),
	}
}

// TreasuryResponse represents the response structure from the Treasury API
type TreasuryResponse struct {
	Data []struct {
		CountryCurrencyDesc string `json:"country_currency_desc"`
		ExchangeRate        string `json:"exchange_rate"`
		RecordDate          string `json:"record_date"`
	} `json:"data"`
	Meta struct {
		Count      int `json:"count"`
		TotalCount int `json:"total-count"`
	} `json:"meta"`
}

// Descriptor reports USD as the base with indirect quotes
func (c *TreasuryAPIClient) Descriptor() domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		Source:           TreasurySource,
		BaseCurrency:     "USD",
		QuoteConvention:  entity.Indirect,
		DefaultFrequency: entity.Quarterly,
		Frequencies:      []entity.Frequency{entity.Quarterly},
	}
}

// FetchRates returns every published rate with a record date in [start, end]
func (c *TreasuryAPIClient) FetchRates(ctx context.Context, start, end time.Time, freq entity.Frequency) ([]entity.Rate, error) {
	const op = "api.TreasuryAPIClient.FetchRates"

	if freq != entity.Quarterly {
		return nil, fmt.Errorf("%w: %s publishes quarterly rates only, not %s", entity.ErrUnknownFrequency, TreasurySource, freq)
	}

	months, err := SplitByMonth(start, end)
	if err != nil {
		return nil, err
	}

	var rates []entity.Rate
	for _, m := range months {
		batch, err := c.fetchMonth(ctx, m)
		if err != nil {
			return nil, errors.Wrap(err, op)
		}
		rates = append(rates, batch...)
	}
	return rates, nil
}

func (c *TreasuryAPIClient) fetchMonth(ctx context.Context, m MonthRange) ([]entity.Rate, error) {
	query := url.Values{}
	query.Set("fields", "country_currency_desc,exchange_rate,record_date")
	query.Set("filter", fmt.Sprintf("record_date:gte:%s,record_date:lte:%s",
		m.Start.Format(entity.DateLayout), m.End.Format(entity.DateLayout)))
	query.Set("sort", "record_date")
	query.Set("page[size]", fmt.Sprint(treasuryPageSize))
	reqURL := c.baseURL + exchangeRatePath + "?" + query.Encode()

	body, err := c.get(ctx, reqURL, "application/json")
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var resp TreasuryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.Meta.TotalCount > len(resp.Data) {
		c.logger.Warn("Treasury response truncated", map[string]interface{}{
			"month":    m.Start.Format("2006-01"),
			"received": len(resp.Data),
			"total":    resp.Meta.TotalCount,
		})
	}

	rates := make([]entity.Rate, 0, len(resp.Data))
	for _, row := range resp.Data {
		currency, ok := treasuryCurrencies[row.CountryCurrencyDesc]
		if !ok {
			continue
		}

		value, err := decimal.NewFromString(row.ExchangeRate)
		if err != nil || !value.IsPositive() {
			c.logger.Warn("Skipping malformed Treasury rate", map[string]interface{}{
				"currency": row.CountryCurrencyDesc,
				"value":    row.ExchangeRate,
			})
			continue
		}

		date, err := time.Parse(entity.DateLayout, row.RecordDate)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate date '%s': %w", row.RecordDate, err)
		}

		rates = append(rates, entity.NewRate(TreasurySource, entity.Quarterly, currency, date, value))
	}

	return rates, nil
}
