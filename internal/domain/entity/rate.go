// Package entity internal/domain/entity/rate.go
package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the civil date format used on the wire and in storage keys
const DateLayout = "2006-01-02"

// ComparePrecision is the number of decimal places two values must agree on
// to be treated as the same rate.
const ComparePrecision int32 = 6

// Frequency identifies how often a provider publishes a rate series
type Frequency string

const (
	// Daily series publish one value per business day
	Daily Frequency = "daily"
	// Monthly series publish one value per calendar month
	Monthly Frequency = "monthly"
	// Quarterly series publish one value per calendar quarter
	Quarterly Frequency = "quarterly"
)

// ParseFrequency maps a case-insensitive name to a Frequency
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case Daily, Monthly, Quarterly:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFrequency, s)
}

// LatestWindow returns the trailing range a bulk refresh should request.
// Daily series look back a week to bridge missed runs.
func (f Frequency) LatestWindow(now time.Time) (time.Time, time.Time) {
	today := DateOf(now)
	switch f {
	case Daily:
		return today.AddDate(0, 0, -7), today
	case Quarterly:
		return QuarterStart(today), today
	default:
		return MonthStart(today), today
	}
}

// QuoteConvention describes the orientation of a provider's raw values
type QuoteConvention int

const (
	// Direct quotes give the price of one foreign unit in base currency
	Direct QuoteConvention = iota
	// Indirect quotes give the number of foreign units per one base unit
	Indirect
)

func (q QuoteConvention) String() string {
	if q == Indirect {
		return "indirect"
	}
	return "direct"
}

// MarshalText renders the convention by name
func (q QuoteConvention) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// Rate is a single provider observation for one currency on one date
type Rate struct {
	Source    string          `json:"source"`
	Frequency Frequency       `json:"frequency"`
	Currency  Currency        `json:"currency"`
	Date      time.Time       `json:"date"`
	Value     decimal.Decimal `json:"value"`
}

// NewRate builds a rate with its date normalised to a civil date
func NewRate(source string, freq Frequency, currency Currency, date time.Time, value decimal.Decimal) Rate {
	return Rate{
		Source:    source,
		Frequency: freq,
		Currency:  currency,
		Date:      DateOf(date),
		Value:     value,
	}
}

// PeggedCurrency fixes a currency to a peg target at a constant multiplier.
// Multiplier is the number of Currency units per one PegTarget unit.
type PeggedCurrency struct {
	Currency   Currency        `json:"currency"`
	PegTarget  Currency        `json:"peg_target"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// DateOf truncates t to midnight UTC of its calendar date
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of the month containing t
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last day of the month containing t
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, -1)
}

// QuarterStart returns the first day of the calendar quarter containing t
func QuarterStart(t time.Time) time.Time {
	q := (int(t.Month()) - 1) / 3
	return time.Date(t.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
}

// Period returns the inclusive window of one bulk lookup around t: the
// calendar quarter for quarterly series, the calendar month otherwise.
func (f Frequency) Period(t time.Time) (time.Time, time.Time) {
	if f == Quarterly {
		start := QuarterStart(t)
		return start, MonthEnd(start.AddDate(0, 2, 0))
	}
	start := MonthStart(t)
	return start, MonthEnd(start)
}

// PreviousPeriod returns the window immediately before the one containing t
func (f Frequency) PreviousPeriod(t time.Time) (time.Time, time.Time) {
	start, _ := f.Period(t)
	return f.Period(start.AddDate(0, 0, -1))
}
