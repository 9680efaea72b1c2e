package shared

import "github.com/shopspring/decimal"

// DefaultPrecision is the number of minor-unit digits used when none is configured.
const DefaultPrecision int32 = 2

// MaxPrecision matches the NUMERIC(20,4) scale of every money column.
const MaxPrecision int32 = 4

// ValidPrecision reports whether precision fits the storage scale.
func ValidPrecision(precision int32) bool {
	return precision >= 1 && precision <= MaxPrecision
}

// FormatMoney renders d with exactly precision fractional digits.
func FormatMoney(d decimal.Decimal, precision int32) string {
	if !ValidPrecision(precision) {
		precision = DefaultPrecision
	}
	return d.StringFixed(precision)
}

// WithinPrecision reports whether d carries no more than precision fractional digits.
func WithinPrecision(d decimal.Decimal, precision int32) bool {
	return d.Equal(d.Round(precision))
}

// RoundMoney rounds half away from zero to the currency precision.
func RoundMoney(d decimal.Decimal, precision int32) decimal.Decimal {
	return d.Round(precision)
}

// Signed returns the ledger delta of a line: +debit -credit.
func Signed(debit, credit decimal.Decimal) decimal.Decimal {
	return debit.Sub(credit)
}
