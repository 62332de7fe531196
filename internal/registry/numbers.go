package registry

import (
	"strconv"
	"strings"
)

// Longer symbols first so "Rs." is consumed before "Rs".
var currencySymbols = []string{"Rs.", "Rs", "INR", "USD", "EUR", "$", "€", "£", "¥", "₹"}

// normalizeCurrency strips currency symbols, separators and accounting
// parentheses, returning a float64 scalar or nil when no number remains.
func normalizeCurrency(args Args) (Result, error) {
	if isMissing(args.Value) {
		return Scalar(nil), nil
	}
	s := strings.TrimSpace(cellString(args.Value))
	if s == "" {
		return Scalar(nil), nil
	}
	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSpace(s)

	// "(500)" is accounting notation for -500.
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Scalar(nil), nil
	}
	return Scalar(f), nil
}
