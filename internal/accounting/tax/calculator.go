package tax

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Breakdown is the result of a tax split.
type Breakdown struct {
	Code      string          `json:"tax_code"`
	Rate      decimal.Decimal `json:"rate"`
	Net       decimal.Decimal `json:"net"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Gross     decimal.Decimal `json:"gross"`
	Inclusive bool            `json:"inclusive"`
}

// Calculator is the pure tax service. Rounding happens here and nowhere else.
type Calculator struct {
	rates       RateTable
	defaultCode string
	precision   int32
}

// NewCalculator constructs a Calculator. precision is the currency scale.
func NewCalculator(rates RateTable, defaultCode string, precision int32) *Calculator {
	return &Calculator{rates: rates, defaultCode: strings.ToUpper(strings.TrimSpace(defaultCode)), precision: precision}
}

// DefaultCode returns the code used when none is supplied.
func (c *Calculator) DefaultCode() string { return c.defaultCode }

// Calculate dispatches on inclusive.
func (c *Calculator) Calculate(ctx context.Context, tenantID int64, amount decimal.Decimal, code string, inclusive bool) (Breakdown, error) {
	if inclusive {
		return c.CalculateFromGross(ctx, tenantID, amount, code)
	}
	return c.CalculateFromNet(ctx, tenantID, amount, code)
}

// CalculateFromNet adds tax on top of a net amount.
func (c *Calculator) CalculateFromNet(ctx context.Context, tenantID int64, amount decimal.Decimal, code string) (Breakdown, error) {
	code, rate, err := c.resolve(ctx, tenantID, amount, code)
	if err != nil {
		return Breakdown{}, err
	}
	taxAmount := shared.RoundMoney(amount.Mul(rate), c.precision)
	return Breakdown{Code: code, Rate: rate, Net: amount, TaxAmount: taxAmount, Gross: amount.Add(taxAmount)}, nil
}

// CalculateFromGross extracts tax from a tax-inclusive amount. Net is rounded, tax absorbs the remainder.
func (c *Calculator) CalculateFromGross(ctx context.Context, tenantID int64, amount decimal.Decimal, code string) (Breakdown, error) {
	code, rate, err := c.resolve(ctx, tenantID, amount, code)
	if err != nil {
		return Breakdown{}, err
	}
	divisor := decimal.NewFromInt(1).Add(rate)
	net := shared.RoundMoney(amount.DivRound(divisor, c.precision+4), c.precision)
	return Breakdown{Code: code, Rate: rate, Net: net, TaxAmount: amount.Sub(net), Gross: amount, Inclusive: true}, nil
}

func (c *Calculator) resolve(ctx context.Context, tenantID int64, amount decimal.Decimal, code string) (string, decimal.Decimal, error) {
	if amount.IsNegative() {
		return "", decimal.Zero, shared.Invalid("amount", "must not be negative")
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = c.defaultCode
	}
	rate, err := c.rates.Rate(ctx, tenantID, code)
	if err != nil {
		return "", decimal.Zero, err
	}
	return code, rate, nil
}
