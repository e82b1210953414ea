package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ecbCSV = `KEY,FREQ,CURRENCY,CURRENCY_DENOM,EXR_TYPE,EXR_SUFFIX,TIME_PERIOD,OBS_VALUE,OBS_STATUS
EXR.D.USD.EUR.SP00.A,D,USD,EUR,SP00,A,2024-03-14,1.0925,A
EXR.D.USD.EUR.SP00.A,D,USD,EUR,SP00,A,2024-03-15,1.0887,A
EXR.D.JPY.EUR.SP00.A,D,JPY,EUR,SP00,A,2024-03-15,162.01,A
EXR.D.CYP.EUR.SP00.A,D,CYP,EUR,SP00,A,2024-03-15,,A
EXR.D.XYZ.EUR.SP00.A,D,XYZ,EUR,SP00,A,2024-03-15,3.5,A
`

func TestECBFetchRates(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/EXR/D..EUR.SP00.A", r.URL.Path)
		assert.Equal(t, "csvdata", r.URL.Query().Get("format"))

		if r.URL.Query().Get("startPeriod") != "2024-03-01" {
			http.Error(w, "No results found.", http.StatusNotFound)
			return
		}
		assert.Equal(t, "2024-03-31", r.URL.Query().Get("endPeriod"))
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(ecbCSV))
	}))
	defer mockServer.Close()

	client := NewECBClient(mockServer.URL, nil, logger.NopLogger{})

	rates, err := client.FetchRates(context.Background(), day(2024, time.February, 1), day(2024, time.March, 31), entity.Daily)

	require.NoError(t, err)
	require.Len(t, rates, 3)
	assert.Equal(t, entity.NewRate(ECBSource, entity.Daily, "USD", day(2024, time.March, 14), decimal.RequireFromString("1.0925")), rates[0])
	assert.Equal(t, entity.Currency("JPY"), rates[2].Currency)
	assert.True(t, decimal.RequireFromString("162.01").Equal(rates[2].Value))
}

func TestECBFetchRatesUnsupportedFrequency(t *testing.T) {
	client := NewECBClient("http://127.0.0.1:1", nil, logger.NopLogger{})

	_, err := client.FetchRates(context.Background(), day(2024, time.March, 1), day(2024, time.March, 31), entity.Frequency("weekly"))

	assert.ErrorIs(t, err, entity.ErrUnknownFrequency)
}

func TestECBParseCSV(t *testing.T) {
	client := NewECBClient("", nil, logger.NopLogger{})

	t.Run("Monthly periods", func(t *testing.T) {
		body := "\ufeffCURRENCY,TIME_PERIOD,OBS_VALUE\nGBP,2024-03,0.85541\n"

		rates, err := client.parseCSV([]byte(body), entity.Monthly)

		require.NoError(t, err)
		require.Len(t, rates, 1)
		assert.Equal(t, day(2024, time.March, 1), rates[0].Date)
		assert.Equal(t, entity.Monthly, rates[0].Frequency)
	})

	t.Run("Empty body", func(t *testing.T) {
		rates, err := client.parseCSV([]byte("  \n"), entity.Daily)

		assert.NoError(t, err)
		assert.Empty(t, rates)
	})

	t.Run("Missing columns", func(t *testing.T) {
		_, err := client.parseCSV([]byte("KEY,FREQ\nA,D\n"), entity.Daily)

		assert.Error(t, err)
	})
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in       string
		expected time.Time
		wantErr  bool
	}{
		{"2024-03-15", day(2024, time.March, 15), false},
		{"2024-03", day(2024, time.March, 1), false},
		{"2024-Q3", day(2024, time.July, 1), false},
		{"2024-Q5", time.Time{}, true},
		{"yesterday", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePeriod(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
