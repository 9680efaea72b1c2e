package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Seeds a demo tenant: chart of accounts, twelve monthly periods of the current
// year, integration mappings and tenant-wide capability grants. Safe to re-run.
func main() {
	tenantID, err := strconv.ParseInt(getenv("SEED_TENANT_ID", "1"), 10, 64)
	if err != nil || tenantID <= 0 {
		log.Fatalf("SEED_TENANT_ID: invalid tenant id")
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	svc, err := app.BuildLedger(cfg, app.LedgerDeps{Pool: pool})
	if err != nil {
		log.Fatalf("wire ledger: %v", err)
	}

	fmt.Println("→ Seeding chart of accounts...")
	if err := seedChart(ctx, svc.Accounts, tenantID); err != nil {
		log.Fatalf("seed chart: %v", err)
	}
	fmt.Println("→ Seeding financial periods...")
	if err := seedPeriods(ctx, svc.Periods, tenantID, time.Now().UTC().Year()); err != nil {
		log.Fatalf("seed periods: %v", err)
	}
	fmt.Println("→ Seeding account mappings...")
	if err := seedMappings(ctx, svc.Mappings, tenantID); err != nil {
		log.Fatalf("seed mappings: %v", err)
	}
	fmt.Println("→ Seeding capability grants...")
	grants := rbac.NewService(pool)
	for _, capability := range common.LedgerScopes() {
		if err := grants.Grant(ctx, rbac.Grant{TenantID: tenantID, Capability: capability}); err != nil {
			log.Fatalf("grant %s: %v", capability, err)
		}
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

var chart = []accounts.CreateInput{
	{Code: "1000", Name: "Cash at Bank", Type: accounts.AccountTypeAsset},
	{Code: "1100", Name: "Accounts Receivable", Type: accounts.AccountTypeAsset},
	{Code: "1200", Name: "Input VAT", Type: accounts.AccountTypeAsset},
	{Code: "2000", Name: "Accounts Payable", Type: accounts.AccountTypeLiability},
	{Code: "2100", Name: "Output VAT", Type: accounts.AccountTypeLiability},
	{Code: "2200", Name: "PAYE Withholding", Type: accounts.AccountTypeLiability},
	{Code: "3000", Name: "Retained Earnings", Type: accounts.AccountTypeEquity},
	{Code: "3100", Name: "Restricted Funds", Type: accounts.AccountTypeEquity},
	{Code: "4000", Name: "Sales Revenue", Type: accounts.AccountTypeRevenue},
	{Code: "4100", Name: "Shipping Fees", Type: accounts.AccountTypeRevenue},
	{Code: "4200", Name: "Donations", Type: accounts.AccountTypeRevenue},
	{Code: "5000", Name: "Salaries Expense", Type: accounts.AccountTypeExpense},
	{Code: "5100", Name: "Operating Expense", Type: accounts.AccountTypeExpense},
}

func seedChart(ctx context.Context, svc *accounts.Service, tenantID int64) error {
	for _, in := range chart {
		in.TenantID = tenantID
		if _, err := svc.Create(ctx, in); err != nil && !errors.Is(err, shared.ErrDuplicateAccountCode) {
			return fmt.Errorf("%s: %w", in.Code, err)
		}
	}
	return nil
}

func seedPeriods(ctx context.Context, svc *periods.Service, tenantID int64, year int) error {
	for m := time.January; m <= time.December; m++ {
		start, end := periods.MonthBounds(time.Date(year, m, 1, 0, 0, 0, 0, time.UTC))
		_, err := svc.Create(ctx, periods.CreateInput{
			TenantID:  tenantID,
			Code:      periods.MonthlyCode(start),
			StartDate: start,
			EndDate:   end,
		})
		if err != nil && !errors.Is(err, shared.ErrPeriodOverlap) {
			return fmt.Errorf("%s: %w", periods.MonthlyCode(start), err)
		}
	}
	return nil
}

var defaultMappings = []mappings.AccountMapping{
	{Module: "BILLING", Key: "invoice.receivable", AccountCode: "1100"},
	{Module: "BILLING", Key: "invoice.revenue", AccountCode: "4000"},
	{Module: "BILLING", Key: "invoice.tax", AccountCode: "2100"},
	{Module: "BILLING", Key: "payment.cash", AccountCode: "1000"},
	{Module: "BILLING", Key: "payment.receivable", AccountCode: "1100"},
	{Module: "PAYROLL", Key: "run.expense", AccountCode: "5000"},
	{Module: "PAYROLL", Key: "run.withholding", AccountCode: "2200"},
	{Module: "PAYROLL", Key: "run.cash", AccountCode: "1000"},
	{Module: "FUNDRAISING", Key: "donation.cash", AccountCode: "1000"},
	{Module: "FUNDRAISING", Key: "donation.unrestricted", AccountCode: "4200"},
	{Module: "FUNDRAISING", Key: "donation.restricted", AccountCode: "3100"},
	{Module: "LOGISTICS", Key: "fee.receivable", AccountCode: "1100"},
	{Module: "LOGISTICS", Key: "fee.revenue", AccountCode: "4100"},
	{Module: "LOGISTICS", Key: "fee.tax", AccountCode: "2100"},
}

func seedMappings(ctx context.Context, repo mappings.Repository, tenantID int64) error {
	for _, m := range defaultMappings {
		m.TenantID = tenantID
		if _, err := repo.Upsert(ctx, m); err != nil {
			return fmt.Errorf("%s/%s: %w", m.Module, m.Key, err)
		}
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
