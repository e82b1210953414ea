package entity

import "github.com/shopspring/decimal"

// DefaultPeggedCurrencies returns the fixed-peg table stores are seeded with.
// Multipliers are units of the pegged currency per one unit of its target.
func DefaultPeggedCurrencies() []PeggedCurrency {
	pegs := []struct {
		currency, target, multiplier string
	}{
		{"AED", "USD", "3.6725"},
		{"ANG", "USD", "1.79"},
		{"AWG", "USD", "1.79"},
		{"BBD", "USD", "2"},
		{"BHD", "USD", "0.376"},
		{"BMD", "USD", "1"},
		{"BSD", "USD", "1"},
		{"BZD", "USD", "2"},
		{"DJF", "USD", "177.721"},
		{"JOD", "USD", "0.709"},
		{"OMR", "USD", "0.3845"},
		{"PAB", "USD", "1"},
		{"QAR", "USD", "3.64"},
		{"SAR", "USD", "3.75"},
		{"XCD", "USD", "2.7"},
		{"BAM", "EUR", "1.95583"},
		{"BGN", "EUR", "1.95583"},
		{"CVE", "EUR", "110.265"},
		{"KMF", "EUR", "491.96775"},
		{"STN", "EUR", "24.5"},
		{"XAF", "EUR", "655.957"},
		{"XOF", "EUR", "655.957"},
		{"XPF", "EUR", "119.33174"},
		{"FKP", "GBP", "1"},
		{"GIP", "GBP", "1"},
		{"SHP", "GBP", "1"},
		{"BTN", "INR", "1"},
		{"NPR", "INR", "1.6"},
		{"LSL", "ZAR", "1"},
		{"NAD", "ZAR", "1"},
		{"SZL", "ZAR", "1"},
	}

	out := make([]PeggedCurrency, 0, len(pegs))
	for _, p := range pegs {
		out = append(out, PeggedCurrency{
			Currency:   Currency(p.currency),
			PegTarget:  Currency(p.target),
			Multiplier: decimal.RequireFromString(p.multiplier),
		})
	}
	return out
}
