package main

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// formatMoney renders an amount with thousands separators and a fixed scale.
// The integer part goes through the printer; the fraction is kept exact.
func formatMoney(amount decimal.Decimal, places int32) string {
	fixed := amount.Abs().StringFixed(places)
	whole, frac, _ := strings.Cut(fixed, ".")
	intPart, err := decimal.NewFromString(whole)
	if err != nil {
		return amount.StringFixed(places)
	}
	out := printer.Sprintf("%d", intPart.IntPart())
	if frac != "" {
		out += "." + frac
	}
	if amount.Round(places).IsNegative() {
		out = "-" + out
	}
	return out
}
