package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Currency codes recognised from price symbols.
const (
	CurrencyGBP = "GBP"
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
)

var priceNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParsePrice reads a human-readable price such as "£8.99".
//
// The currency comes from the symbol ($, € or £, defaulting to GBP) and the
// magnitude from the first integer or decimal substring. Text without a
// number yields 0.
func ParsePrice(text string) (float64, string) {
	currency := CurrencyGBP
	switch {
	case strings.Contains(text, "$"):
		currency = CurrencyUSD
	case strings.Contains(text, "€"):
		currency = CurrencyEUR
	case strings.Contains(text, "£"):
		currency = CurrencyGBP
	}

	return leadingNumber(text), currency
}

// parseAttrPrice parses a machine-readable price attribute. Garbage yields 0.
func parseAttrPrice(v string) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 {
		return f
	}
	return leadingNumber(v)
}

func leadingNumber(text string) float64 {
	m := priceNumber.FindString(text)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return f
}

// minorUnits converts an integer-cents attribute such as data-price="899" to 8.99.
func minorUnits(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f / 100, true
}
