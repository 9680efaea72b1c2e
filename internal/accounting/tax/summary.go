package tax

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ReferenceType tags ledger lines produced by tax expansion.
const ReferenceType = "TAX"

// SummaryLine aggregates one tax code within a period.
type SummaryLine struct {
	TaxCode    string          `json:"tax_code"`
	OutputTax  decimal.Decimal `json:"output_tax"`
	InputTax   decimal.Decimal `json:"input_tax"`
	NetTax     decimal.Decimal `json:"net_tax"`
	EntryCount int             `json:"entry_count"`
}

// Summary is the VAT position of a tenant for one period.
type Summary struct {
	TenantID    int64           `json:"tenant_id"`
	PeriodID    int64           `json:"period_id"`
	PeriodCode  string          `json:"period_code"`
	Lines       []SummaryLine   `json:"lines"`
	TotalOutput decimal.Decimal `json:"total_output"`
	TotalInput  decimal.Decimal `json:"total_input"`
	NetPayable  decimal.Decimal `json:"net_payable"`
	GeneratedAt time.Time       `json:"generated_at"`
	Finalized   bool            `json:"finalized"`
	FinalizedAt *time.Time      `json:"finalized_at,omitempty"`
	FinalizedBy *int64          `json:"finalized_by,omitempty"`
}

func (s *Summary) totals() {
	s.TotalOutput, s.TotalInput = decimal.Zero, decimal.Zero
	for i := range s.Lines {
		line := &s.Lines[i]
		line.NetTax = line.OutputTax.Sub(line.InputTax)
		s.TotalOutput = s.TotalOutput.Add(line.OutputTax)
		s.TotalInput = s.TotalInput.Add(line.InputTax)
	}
	s.NetPayable = s.TotalOutput.Sub(s.TotalInput)
}

// PeriodLookup resolves financial periods by code.
type PeriodLookup interface {
	Get(ctx context.Context, tenantID int64, code string) (periods.Period, error)
}

// AuditPort records finalisations.
type AuditPort interface {
	Record(ctx context.Context, log common.AuditLog) error
}

// SummaryService generates and freezes VAT summaries.
type SummaryService struct {
	repo    Repository
	periods PeriodLookup
	cache   *Cache
	audit   AuditPort
	logger  *slog.Logger
	group   singleflight.Group
	now     func() time.Time
}

// NewSummaryService wires the VAT summary generator. cache and audit may be nil.
func NewSummaryService(repo Repository, periods PeriodLookup, cache *Cache, audit AuditPort, logger *slog.Logger) *SummaryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryService{repo: repo, periods: periods, cache: cache, audit: audit, logger: logger, now: time.Now}
}

// Generate returns the finalized snapshot when one exists, otherwise a live aggregate.
func (s *SummaryService) Generate(ctx context.Context, tenantID int64, periodCode string) (Summary, error) {
	period, err := s.periods.Get(ctx, tenantID, periodCode)
	if err != nil {
		return Summary{}, err
	}
	snapshot, found, err := s.repo.GetFinalized(ctx, tenantID, period.ID)
	if err != nil {
		return Summary{}, err
	}
	if found {
		return snapshot, nil
	}
	key, err := s.cache.BuildKey(ctx, tenantID, period.Code)
	if err != nil {
		s.logger.Warn("vat cache key", slog.Any("error", err))
		return s.build(ctx, period)
	}
	val, err, _ := s.group.Do(key, func() (any, error) {
		var out Summary
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			return s.build(ctx, period)
		})
		return out, err
	})
	if err != nil {
		return Summary{}, err
	}
	return val.(Summary), nil
}

// Finalize freezes the summary of a CLOSED period. A period can be finalized once.
func (s *SummaryService) Finalize(ctx context.Context, tenantID int64, periodCode string, actorID int64) (Summary, error) {
	period, err := s.periods.Get(ctx, tenantID, periodCode)
	if err != nil {
		return Summary{}, err
	}
	if period.Status != periods.PeriodStatusClosed {
		return Summary{}, fmt.Errorf("%w: %s", shared.ErrPeriodNotClosed, period.Code)
	}
	if _, found, err := s.repo.GetFinalized(ctx, tenantID, period.ID); err != nil {
		return Summary{}, err
	} else if found {
		return Summary{}, shared.ErrVATSummaryFinalized
	}
	summary, err := s.build(ctx, period)
	if err != nil {
		return Summary{}, err
	}
	at := s.now()
	summary.Finalized, summary.FinalizedAt, summary.FinalizedBy = true, &at, &actorID
	if err := s.repo.InsertFinalized(ctx, summary); err != nil {
		return Summary{}, err
	}
	if err := s.cache.Bump(ctx, tenantID); err != nil {
		s.logger.Warn("vat cache bump", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, common.AuditLog{
			TenantID: tenantID,
			ActorID:  actorID,
			Action:   "vat.finalize",
			Entity:   "financial_period",
			EntityID: strconv.FormatInt(period.ID, 10),
			Meta:     map[string]any{"code": period.Code, "net_payable": summary.NetPayable.String()},
		}); err != nil {
			s.logger.Warn("vat audit", slog.Any("error", err))
		}
	}
	return summary, nil
}

// Invalidate drops cached summaries after new postings.
func (s *SummaryService) Invalidate(ctx context.Context, tenantID int64) error {
	return s.cache.Bump(ctx, tenantID)
}

func (s *SummaryService) build(ctx context.Context, period periods.Period) (Summary, error) {
	lines, err := s.repo.Aggregate(ctx, period.TenantID, period.ID)
	if err != nil {
		return Summary{}, err
	}
	if lines == nil {
		lines = []SummaryLine{}
	}
	summary := Summary{
		TenantID:    period.TenantID,
		PeriodID:    period.ID,
		PeriodCode:  period.Code,
		Lines:       lines,
		GeneratedAt: s.now().UTC(),
	}
	summary.totals()
	return summary, nil
}
