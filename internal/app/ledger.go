package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/tax"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Ledger bundles the services shared by the API server, the worker and the CLI.
type Ledger struct {
	Audit      *shared.AuditLogger
	Accounts   *accounts.Service
	Periods    *periods.Service
	Calculator *tax.Calculator
	VAT        *tax.SummaryService
	Journals   *journals.Service
	Balances   *ledger.Service
	Mappings   mappings.Repository
	Hooks      *integration.Hooks
}

// LedgerDeps are the runtime collaborators of BuildLedger. Notifier and
// Recorder may be nil.
type LedgerDeps struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Logger   *slog.Logger
	Notifier journals.Notifier
	Recorder journals.Recorder
}

// BuildLedger wires the ledger services from configuration.
func BuildLedger(cfg *Config, deps LedgerDeps) (*Ledger, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rates, err := cfg.TaxRates()
	if err != nil {
		return nil, err
	}

	audit := shared.NewAuditLogger(deps.Pool)
	periodService := periods.NewService(periods.NewRepository(deps.Pool), audit, logger)
	calculator := tax.NewCalculator(tax.NewTenantRates(deps.Pool, rates), cfg.LedgerDefaultTaxCode, cfg.LedgerPrecision)

	vatCache := tax.NewCache(deps.Redis, cfg.LedgerVATCacheTTL)
	vat := tax.NewSummaryService(tax.NewRepository(deps.Pool), periodService, vatCache, audit, logger)

	journalService := journals.NewService(journals.NewRepository(deps.Pool), calculator, periodService, journals.Config{
		Precision:             cfg.LedgerPrecision,
		AutoCreatePeriods:     cfg.LedgerAutoCreatePeriods,
		VoidIntoCurrentPeriod: cfg.LedgerVoidIntoCurrentPeriod,
	}).WithAudit(audit).WithLogger(logger)
	if deps.Notifier != nil {
		journalService = journalService.WithNotifier(deps.Notifier)
	}
	if deps.Recorder != nil {
		journalService = journalService.WithMetrics(deps.Recorder)
	}

	mappingRepo := mappings.NewRepository(deps.Pool)
	return &Ledger{
		Audit:      audit,
		Accounts:   accounts.NewService(accounts.NewRepository(deps.Pool)),
		Periods:    periodService,
		Calculator: calculator,
		VAT:        vat,
		Journals:   journalService,
		Balances:   ledger.NewService(ledger.NewRepository(deps.Pool), logger),
		Mappings:   mappingRepo,
		Hooks:      integration.NewHooks(journalService, mappingRepo, logger),
	}, nil
}
