package entity

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 alphabetic code known to the resolver
type Currency string

// isoCodes lists the active ISO 4217 codes plus a few historic ones still
// published by central banks.
var isoCodes = []string{
	"AED", "AFN", "ALL", "AMD", "ANG", "AOA", "ARS", "AUD", "AWG", "AZN",
	"BAM", "BBD", "BDT", "BGN", "BHD", "BIF", "BMD", "BND", "BOB", "BRL",
	"BSD", "BTN", "BWP", "BYN", "BZD", "CAD", "CDF", "CHF", "CLP", "CNY",
	"COP", "CRC", "CUP", "CVE", "CYP", "CZK", "DJF", "DKK", "DOP", "DZD",
	"EEK", "EGP", "ERN", "ETB", "EUR", "FJD", "FKP", "GBP", "GEL", "GHS",
	"GIP", "GMD", "GNF", "GTQ", "GYD", "HKD", "HNL", "HRK", "HTG", "HUF",
	"IDR", "ILS", "INR", "IQD", "IRR", "ISK", "JMD", "JOD", "JPY", "KES",
	"KGS", "KHR", "KMF", "KPW", "KRW", "KWD", "KYD", "KZT", "LAK", "LBP",
	"LKR", "LRD", "LSL", "LTL", "LVL", "LYD", "MAD", "MDL", "MGA", "MKD",
	"MMK", "MNT", "MOP", "MRU", "MTL", "MUR", "MVR", "MWK", "MXN", "MYR",
	"MZN", "NAD", "NGN", "NIO", "NOK", "NPR", "NZD", "OMR", "PAB", "PEN",
	"PGK", "PHP", "PKR", "PLN", "PYG", "QAR", "RON", "RSD", "RUB", "RWF",
	"SAR", "SBD", "SCR", "SDG", "SEK", "SGD", "SHP", "SIT", "SKK", "SLE",
	"SOS", "SRD", "SSP", "STN", "SVC", "SYP", "SZL", "THB", "TJS", "TMT",
	"TND", "TOP", "TRY", "TTD", "TWD", "TZS", "UAH", "UGX", "USD", "UYU",
	"UZS", "VES", "VND", "VUV", "WST", "XAF", "XCD", "XOF", "XPF", "YER",
	"ZAR", "ZMW", "ZWL",
}

var knownCurrencies = func() map[Currency]struct{} {
	m := make(map[Currency]struct{}, len(isoCodes))
	for _, c := range isoCodes {
		m[Currency(c)] = struct{}{}
	}
	return m
}()

// ParseCurrency maps a code to a Currency, ignoring case and surrounding space
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := knownCurrencies[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrencyCode, code)
	}
	return c, nil
}

// IsKnown reports whether c belongs to the identifier set
func (c Currency) IsKnown() bool {
	_, ok := knownCurrencies[c]
	return ok
}

func (c Currency) String() string {
	return string(c)
}
