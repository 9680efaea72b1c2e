package ledger

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service answers ledger queries and verifies balance derivability.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a ledger Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// ListAccounts returns the tenant's ledger accounts with signed balances.
func (s *Service) ListAccounts(ctx context.Context, tenantID int64) ([]Account, error) {
	return s.repo.ListAccounts(ctx, tenantID)
}

// ListEntries pages through posted lines.
func (s *Service) ListEntries(ctx context.Context, tenantID int64, filters EntryFilters, page common.PageRequest) ([]Entry, common.Pagination, error) {
	filters.AccountCode = strings.TrimSpace(filters.AccountCode)
	if filters.From != nil && filters.To != nil && filters.To.Before(*filters.From) {
		return nil, common.Pagination{}, shared.Invalid("date_range", "to before from")
	}
	page = page.Normalize()
	entries, total, err := s.repo.ListEntries(ctx, tenantID, filters, page)
	if err != nil {
		return nil, common.Pagination{}, err
	}
	return entries, common.NewPagination(page.Page, page.PerPage, total), nil
}

// CheckIntegrity recomputes every ledger account balance from its lines and
// re-verifies the debit/credit equality of every posted journal.
func (s *Service) CheckIntegrity(ctx context.Context, tenantID int64) (IntegrityReport, error) {
	report := IntegrityReport{TenantID: tenantID, CheckedAt: s.now()}
	checked, drifts, err := s.repo.AccountDrifts(ctx, tenantID)
	if err != nil {
		return IntegrityReport{}, err
	}
	report.AccountsChecked, report.Drifts = checked, drifts
	checked, imbalances, err := s.repo.UnbalancedJournals(ctx, tenantID)
	if err != nil {
		return IntegrityReport{}, err
	}
	report.JournalsChecked, report.Imbalances = checked, imbalances
	if !report.OK() {
		s.logger.Error("ledger integrity violation",
			slog.Int64("tenant_id", tenantID),
			slog.Int("drifts", len(report.Drifts)),
			slog.Int("imbalances", len(report.Imbalances)))
	}
	return report, nil
}

// CheckAll runs CheckIntegrity for every tenant that has ledger accounts.
func (s *Service) CheckAll(ctx context.Context) ([]IntegrityReport, error) {
	tenants, err := s.repo.ListTenants(ctx)
	if err != nil {
		return nil, err
	}
	reports := make([]IntegrityReport, 0, len(tenants))
	for _, tenantID := range tenants {
		report, err := s.CheckIntegrity(ctx, tenantID)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
