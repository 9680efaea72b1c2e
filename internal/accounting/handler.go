package accounting

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/tax"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// LedgerReader lists balances, lines and integrity reports.
type LedgerReader interface {
	ListAccounts(ctx context.Context, tenantID int64) ([]ledger.Account, error)
	ListEntries(ctx context.Context, tenantID int64, filters ledger.EntryFilters, page common.PageRequest) ([]ledger.Entry, common.Pagination, error)
	CheckIntegrity(ctx context.Context, tenantID int64) (ledger.IntegrityReport, error)
}

// PeriodController is the period lifecycle surface.
type PeriodController interface {
	List(ctx context.Context, tenantID int64, filters periods.Filters) ([]periods.Period, error)
	Create(ctx context.Context, in periods.CreateInput) (periods.Period, error)
	Close(ctx context.Context, tenantID int64, code string, actorID int64) (periods.Period, error)
	Reopen(ctx context.Context, tenantID int64, code string, actorID int64) (periods.Period, error)
}

// TaxCalculator splits an amount for display.
type TaxCalculator interface {
	Calculate(ctx context.Context, tenantID int64, amount decimal.Decimal, code string, inclusive bool) (tax.Breakdown, error)
}

// VATSummaries generates and finalizes period VAT summaries.
type VATSummaries interface {
	Generate(ctx context.Context, tenantID int64, periodCode string) (tax.Summary, error)
	Finalize(ctx context.Context, tenantID int64, periodCode string, actorID int64) (tax.Summary, error)
}

// Services groups everything the ledger API mounts.
type Services struct {
	Journals *journals.Handler
	Chart    *accounts.Handler
	Ledger   LedgerReader
	Periods  PeriodController
	Taxes    TaxCalculator
	VAT      VATSummaries
}

// Handler wires the ledger endpoints.
type Handler struct {
	logger *slog.Logger
	svc    Services
	rbac   rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, svc Services, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, svc: svc, rbac: rbac}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	view := h.rbac.RequireAny(common.CapJournalView, common.CapJournalPost)

	if h.svc.Journals != nil {
		r.Route("/journals", h.svc.Journals.MountRoutes)
	}
	if h.svc.Chart != nil {
		r.Route("/chart", func(r chi.Router) {
			r.Use(view)
			h.svc.Chart.MountRoutes(r, h.rbac.RequireAll(common.CapChartManage))
		})
	}
	if h.svc.Ledger != nil {
		r.Group(func(r chi.Router) {
			r.Use(view)
			r.Get("/accounts", h.listAccounts)
			r.Get("/entries", h.listEntries)
			r.Get("/integrity", h.integrity)
		})
	}
	if h.svc.Periods != nil {
		r.Route("/periods", func(r chi.Router) {
			r.With(h.rbac.RequireAny(common.CapJournalView, common.CapPeriodManage)).Get("/", h.listPeriods)
			r.Group(func(r chi.Router) {
				r.Use(h.rbac.RequireAll(common.CapPeriodManage))
				r.Post("/", h.createPeriod)
				r.Post("/{code}/close", h.closePeriod)
				r.Post("/{code}/reopen", h.reopenPeriod)
			})
		})
	}
	if h.svc.Taxes != nil {
		r.With(h.rbac.RequireAny(common.CapTaxView, common.CapJournalPost)).Get("/tax/calculate", h.calculateTax)
	}
	if h.svc.VAT != nil {
		r.Route("/vat/{period}", func(r chi.Router) {
			r.With(h.rbac.RequireAll(common.CapTaxView)).Get("/", h.vatSummary)
			r.With(h.rbac.RequireAll(common.CapVATFinalize)).Post("/finalize", h.finalizeVAT)
		})
	}
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) && h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func dateString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
