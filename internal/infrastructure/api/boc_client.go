package api

import (
	"context"
	"encoding/json"
	"fmt"
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
	// BOCSource identifies the Bank of Canada Valet exchange rates
	BOCSource = "BOC"

	bocBaseURL = "https://www.bankofcanada.ca/valet"
)

type bocSeries struct {
	group  string
	prefix string
}

// bocGroups maps frequencies to Valet series groups and series name prefixes
var bocGroups = map[entity.Frequency]bocSeries{
	entity.Daily:   {group: "FX_RATES_DAILY", prefix: "FX"},
	entity.Monthly: {group: "FX_RATES_MONTHLY", prefix: "FXM"},
}

// BOCClient fetches Canadian dollar exchange rates from the Valet API.
// Values are Canadian dollars per one foreign unit.
type BOCClient struct {
	baseURL string
	httpFetcher
}

// NewBOCClient creates a new Bank of Canada Valet client
func NewBOCClient(baseURL string, httpClient *http.Client, log logger.Logger) *BOCClient {
	if baseURL == "" {
		baseURL = bocBaseURL
	}

	return &BOCClient{
		baseURL:     baseURL,
		httpFetcher: newHTTPFetcher(httpClient, log),
	}
}

// ValetResponse is the observations document of a series group
type ValetResponse struct {
	Observations []map[string]json.RawMessage `json:"observations"`
}

type valetValue struct {
	V string `json:"v"`
}

// Descriptor reports CAD as the base with direct quotes
func (c *BOCClient) Descriptor() domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		Source:           BOCSource,
		BaseCurrency:     "CAD",
		QuoteConvention:  entity.Direct,
		DefaultFrequency: entity.Daily,
		Frequencies:      []entity.Frequency{entity.Daily, entity.Monthly},
	}
}

// FetchRates returns every observation in [start, end] for the group's currencies
func (c *BOCClient) FetchRates(ctx context.Context, start, end time.Time, freq entity.Frequency) ([]entity.Rate, error) {
	const op = "api.BOCClient.FetchRates"

	series, ok := bocGroups[freq]
	if !ok {
		return nil, fmt.Errorf("%w: %s does not publish %s rates", entity.ErrUnknownFrequency, BOCSource, freq)
	}

	months, err := SplitByMonth(start, end)
	if err != nil {
		return nil, err
	}

	var rates []entity.Rate
	for _, m := range months {
		batch, err := c.fetchMonth(ctx, m, freq, series)
		if err != nil {
			return nil, errors.Wrap(err, op)
		}
		rates = append(rates, batch...)
	}
	return rates, nil
}

func (c *BOCClient) fetchMonth(ctx context.Context, m MonthRange, freq entity.Frequency, series bocSeries) ([]entity.Rate, error) {
	query := url.Values{}
	query.Set("start_date", m.Start.Format(entity.DateLayout))
	query.Set("end_date", m.End.Format(entity.DateLayout))
	reqURL := c.baseURL + "/observations/group/" + series.group + "/json?" + query.Encode()

	body, err := c.get(ctx, reqURL, "application/json")
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var resp ValetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var rates []entity.Rate
	for _, obs := range resp.Observations {
		var d string
		if err := json.Unmarshal(obs["d"], &d); err != nil {
			return nil, fmt.Errorf("observation without date: %w", err)
		}
		date, err := time.Parse(entity.DateLayout, d)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate date '%s': %w", d, err)
		}

		for name, raw := range obs {
			currency, ok := seriesCurrency(name, series.prefix)
			if !ok {
				continue
			}

			var v valetValue
			if err := json.Unmarshal(raw, &v); err != nil || v.V == "" {
				continue
			}
			value, err := decimal.NewFromString(v.V)
			if err != nil || !value.IsPositive() {
				c.logger.Warn("Skipping malformed Valet observation", map[string]interface{}{
					"series": name,
					"value":  v.V,
				})
				continue
			}

			rates = append(rates, entity.NewRate(BOCSource, freq, currency, date, value))
		}
	}

	return rates, nil
}

// seriesCurrency extracts XXX from series names like FXXXXCAD
func seriesCurrency(name, prefix string) (entity.Currency, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, "CAD") {
		return "", false
	}
	code := strings.TrimSuffix(strings.TrimPrefix(name, prefix), "CAD")
	if len(code) != 3 {
		return "", false
	}
	c, err := entity.ParseCurrency(code)
	if err != nil {
		return "", false
	}
	return c, true
}
