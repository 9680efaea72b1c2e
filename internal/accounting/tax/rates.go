// Package tax splits amounts into net and tax components and summarises VAT per period.
package tax

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// RateTable resolves a tax code to its rate for a tenant.
type RateTable interface {
	Rate(ctx context.Context, tenantID int64, code string) (decimal.Decimal, error)
}

// StaticRates is a process-wide rate table loaded from configuration.
type StaticRates map[string]decimal.Decimal

// Rate implements RateTable.
func (r StaticRates) Rate(_ context.Context, _ int64, code string) (decimal.Decimal, error) {
	rate, ok := r[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", shared.ErrUnknownTaxCode, code)
	}
	return rate, nil
}

// ParseRates reads "CODE:rate,CODE:rate" pairs, e.g. "VAT-7.5:0.075,VAT-0:0".
func ParseRates(raw string) (StaticRates, error) {
	out := StaticRates{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, value, ok := strings.Cut(pair, ":")
		code = strings.ToUpper(strings.TrimSpace(code))
		if !ok || code == "" {
			return nil, fmt.Errorf("tax: malformed rate %q", pair)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("tax: rate %q: %w", pair, err)
		}
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("tax: rate %q out of range [0,1)", pair)
		}
		out[code] = rate
	}
	return out, nil
}

// TenantRates overlays per-tenant rows from tenant_tax_rates on a fallback table.
type TenantRates struct {
	pool     *pgxpool.Pool
	fallback RateTable
}

// NewTenantRates constructs a pgx backed rate table.
func NewTenantRates(pool *pgxpool.Pool, fallback RateTable) *TenantRates {
	return &TenantRates{pool: pool, fallback: fallback}
}

// Rate implements RateTable.
func (t *TenantRates) Rate(ctx context.Context, tenantID int64, code string) (decimal.Decimal, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var rate decimal.Decimal
	err := t.pool.QueryRow(ctx, `SELECT rate FROM tenant_tax_rates WHERE tenant_id=$1 AND code=$2 AND is_active`, tenantID, code).Scan(&rate)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("tax: load tenant rate: %w", err)
	}
	if t.fallback == nil {
		return decimal.Zero, fmt.Errorf("%w: %s", shared.ErrUnknownTaxCode, code)
	}
	return t.fallback.Rate(ctx, tenantID, code)
}
