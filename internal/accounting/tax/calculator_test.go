package tax

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	rates, err := ParseRates("VAT-7.5:0.075, VAT-0:0")
	require.NoError(t, err)
	return NewCalculator(rates, "vat-7.5", shared.DefaultPrecision)
}

func TestCalculateFromGrossSplitsInclusiveAmount(t *testing.T) {
	calc := newTestCalculator(t)
	b, err := calc.CalculateFromGross(context.Background(), 1, dec("11500"), "VAT-7.5")
	require.NoError(t, err)
	require.Equal(t, "10697.67", b.Net.StringFixed(2))
	require.Equal(t, "802.33", b.TaxAmount.StringFixed(2))
	require.True(t, b.Gross.Equal(dec("11500")))
	require.True(t, b.Net.Add(b.TaxAmount).Equal(b.Gross))
	require.True(t, b.Inclusive)
}

func TestCalculateFromNetAddsTax(t *testing.T) {
	calc := newTestCalculator(t)
	b, err := calc.Calculate(context.Background(), 1, dec("10000"), "", false)
	require.NoError(t, err)
	require.Equal(t, "VAT-7.5", b.Code)
	require.Equal(t, "750.00", b.TaxAmount.StringFixed(2))
	require.Equal(t, "10750.00", b.Gross.StringFixed(2))

	b, err = calc.Calculate(context.Background(), 1, dec("0.05"), "VAT-7.5", false)
	require.NoError(t, err)
	require.Equal(t, "0.00", b.TaxAmount.StringFixed(2), "0.00375 rounds down")

	b, err = calc.Calculate(context.Background(), 1, dec("0.20"), "VAT-7.5", false)
	require.NoError(t, err)
	require.Equal(t, "0.02", b.TaxAmount.StringFixed(2), "0.015 rounds half away from zero")
}

func TestCalculateZeroRateAndErrors(t *testing.T) {
	calc := newTestCalculator(t)
	b, err := calc.Calculate(context.Background(), 1, dec("100"), "vat-0", true)
	require.NoError(t, err)
	require.True(t, b.TaxAmount.IsZero())
	require.True(t, b.Net.Equal(dec("100")))

	_, err = calc.Calculate(context.Background(), 1, dec("100"), "GST", false)
	require.ErrorIs(t, err, shared.ErrUnknownTaxCode)

	_, err = calc.Calculate(context.Background(), 1, dec("-1"), "VAT-7.5", false)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestParseRatesRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"VAT", "VAT:abc", "VAT:1.5", ":0.1", "VAT:-0.1"} {
		_, err := ParseRates(raw)
		require.Error(t, err, raw)
	}
	rates, err := ParseRates("")
	require.NoError(t, err)
	require.Empty(t, rates)
}
