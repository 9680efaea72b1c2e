package journals

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/tax"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort records posting and void events.
type AuditPort interface {
	Record(ctx context.Context, log common.AuditLog) error
}

// TaxCalculator splits taxable amounts.
type TaxCalculator interface {
	Calculate(ctx context.Context, tenantID int64, amount decimal.Decimal, code string, inclusive bool) (tax.Breakdown, error)
}

// PeriodProvisioner finds or lazily creates financial periods outside the posting transaction.
type PeriodProvisioner interface {
	FindByDate(ctx context.Context, tenantID int64, date time.Time) (periods.Period, error)
	EnsureMonthly(ctx context.Context, tenantID int64, date time.Time) (periods.Period, error)
}

// Notifier publishes the posting-completed fact after commit.
type Notifier interface {
	JournalPosted(ctx context.Context, entry JournalEntry) error
}

// Recorder counts engine outcomes.
type Recorder interface {
	ObservePosting(outcome string)
	ObserveVoid(outcome string)
}

// Config tunes the engine.
type Config struct {
	Precision             int32
	AutoCreatePeriods     bool
	VoidIntoCurrentPeriod bool
}

// Service is the posting and void engine.
type Service struct {
	repo     Repository
	taxes    TaxCalculator
	periods  PeriodProvisioner
	audit    AuditPort
	notifier Notifier
	metrics  Recorder
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// NewService constructs the engine. periods may be nil when lazy period creation is off.
func NewService(repo Repository, taxes TaxCalculator, periods PeriodProvisioner, cfg Config) *Service {
	if !shared.ValidPrecision(cfg.Precision) {
		cfg.Precision = shared.DefaultPrecision
	}
	return &Service{repo: repo, taxes: taxes, periods: periods, cfg: cfg, logger: slog.Default(), now: time.Now}
}

// WithAudit attaches the audit log.
func (s *Service) WithAudit(audit AuditPort) *Service {
	s.audit = audit
	return s
}

// WithNotifier attaches the posting-completed publisher.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// WithMetrics attaches the outcome recorder.
func (s *Service) WithMetrics(r Recorder) *Service {
	s.metrics = r
	return s
}

// WithLogger replaces the default logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) today() time.Time {
	return periods.DateOnly(s.now())
}

// afterCommit runs the side effects of a committed posting. None of them can undo it.
func (s *Service) afterCommit(ctx context.Context, entry JournalEntry, actorID int64, action string, meta map[string]any) {
	if s.audit != nil {
		if meta == nil {
			meta = map[string]any{}
		}
		meta["number"] = entry.Number
		meta["total"] = entry.TotalDebit.String()
		if err := s.audit.Record(ctx, common.AuditLog{
			TenantID: entry.TenantID,
			ActorID:  actorID,
			Action:   action,
			Entity:   "journal_entry",
			EntityID: strconv.FormatInt(entry.ID, 10),
			Meta:     meta,
			At:       s.now(),
		}); err != nil {
			s.logger.Warn("journal audit", slog.String("action", action), slog.Int64("journal_id", entry.ID), slog.Any("error", err))
		}
	}
	if s.notifier != nil && entry.Status != JournalStatusDraft {
		if err := s.notifier.JournalPosted(ctx, entry); err != nil {
			s.logger.Error("journal posted notification",
				slog.Int64("tenant_id", entry.TenantID),
				slog.Int64("journal_id", entry.ID),
				slog.Any("error", err))
		}
	}
}

func (s *Service) observePosting(outcome string) {
	if s.metrics != nil {
		s.metrics.ObservePosting(outcome)
	}
}

func (s *Service) observeVoid(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveVoid(outcome)
	}
}
