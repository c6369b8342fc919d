// Package money parses the monetary values found in bank exports and
// normalizes currency codes. Amounts are handled as shopspring decimals so
// no precision is lost between parsing and persistence; currency codes are
// checked against the ISO-4217 table carried by go-money.
package money

import (
	"errors"
	"strings"
	"unicode"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount indicates a cell did not contain a parsable decimal
// after cleaning.
var ErrInvalidAmount = errors.New("money: invalid amount")

// currencySymbols are stripped from amount cells before parsing.
var currencySymbols = []string{"$", "€", "£"}

// ParseAmount parses a single-column amount cell. It strips thousands
// separators, currency symbols and whitespace, and recognizes a negative
// value written as a leading minus, a trailing minus, or parentheses.
// The returned decimal is the non-negative magnitude; negative reports the
// detected sign.
func ParseAmount(raw string) (magnitude decimal.Decimal, negative bool, err error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false, ErrInvalidAmount
	}

	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}

	s = stripSeparators(s)
	if s == "" {
		return decimal.Zero, false, ErrInvalidAmount
	}

	d, parseErr := decimal.NewFromString(s)
	if parseErr != nil {
		return decimal.Zero, false, ErrInvalidAmount
	}
	return d.Abs(), negative, nil
}

// ParseMagnitude parses a debit or credit cell, stripping thousands
// separators and whitespace only. Blank or unparsable cells yield zero:
// in split-column files an empty cell just means "no movement on this
// side".
func ParseMagnitude(raw string) decimal.Decimal {
	s := stripSeparators(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d.Abs()
}

// stripSeparators removes thousands-separator commas and any interior
// whitespace.
func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// NormalizeCurrency uppercases a currency cell value, falling back when
// the cell is blank. Codes known to ISO-4217 are returned in canonical
// form; unknown codes pass through uppercased so an exotic export does not
// kill an import.
func NormalizeCurrency(code, fallback string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" {
		c = strings.ToUpper(strings.TrimSpace(fallback))
	}
	if cur := gomoney.GetCurrency(c); cur != nil {
		return cur.Code
	}
	return c
}
