// Package notify announces persisted rate changes to downstream consumers
package notify

import (
	"context"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
)

// maxInlineRates caps how many rows are embedded in one message
const maxInlineRates = 100

// RatesChanged is the payload published after changed rates are persisted
type RatesChanged struct {
	Source  string        `json:"source"`
	Changed int           `json:"changed"`
	From    string        `json:"from"`
	To      string        `json:"to"`
	Rates   []entity.Rate `json:"rates,omitempty"`
}

func newRatesChanged(source string, rates []entity.Rate) RatesChanged {
	msg := RatesChanged{Source: source, Changed: len(rates)}
	if len(rates) == 0 {
		return msg
	}

	first, last := rates[0].Date, rates[0].Date
	for _, r := range rates[1:] {
		if r.Date.Before(first) {
			first = r.Date
		}
		if r.Date.After(last) {
			last = r.Date
		}
	}
	msg.From, msg.To = first.Format(entity.DateLayout), last.Format(entity.DateLayout)
	if len(rates) <= maxInlineRates {
		msg.Rates = rates
	}
	return msg
}

// NopNotifier drops every notification
type NopNotifier struct{}

// NotifyRatesChanged does nothing
func (NopNotifier) NotifyRatesChanged(context.Context, string, []entity.Rate) error { return nil }
