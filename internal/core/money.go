// Package core holds the bookkeeping domain: transactions, documents,
// catalog items and the money parsing and formatting they all share.
//
// Monetary values are shopspring decimals end to end. Floats appear only at
// the edge, when rendering chart data for the UI.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts user input to a positive decimal rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// performs half-up rounding on the third decimal place. Signs are rejected:
// direction comes from the transaction type, never from the amount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil (rounds up)
//	ParseAmount("-5")     -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// currencySymbols maps supported currency codes to their display symbol.
var currencySymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
}

// FormatAmount renders a decimal for display: symbol prefix, two decimal
// places, and a decimal comma for Italian locales. Unknown currencies fall
// back to the bare code as prefix.
func FormatAmount(d decimal.Decimal, currency, locale string) string {
	sym, ok := currencySymbols[currency]
	if !ok {
		sym = currency + " "
	}
	s := d.StringFixed(2)
	if strings.HasPrefix(locale, "it") {
		s = strings.ReplaceAll(s, ".", ",")
	}
	return sym + s
}

var monthsIT = [...]string{
	"Gennaio", "Febbraio", "Marzo", "Aprile", "Maggio", "Giugno",
	"Luglio", "Agosto", "Settembre", "Ottobre", "Novembre", "Dicembre",
}

var monthsEN = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthLabel returns the display name for a 1-based month in the given
// locale. Out-of-range months return an empty string.
func MonthLabel(month int, locale string) string {
	if month < 1 || month > 12 {
		return ""
	}
	if strings.HasPrefix(locale, "it") {
		return monthsIT[month-1]
	}
	return monthsEN[month-1]
}
