package periods

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort records lifecycle transitions.
type AuditPort interface {
	Record(ctx context.Context, log common.AuditLog) error
}

// Service is the financial period lifecycle controller.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the controller. audit and logger may be nil.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithClock overrides the time source, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// List returns periods with IsCurrent computed against the clock.
func (s *Service) List(ctx context.Context, tenantID int64, filters Filters) ([]Period, error) {
	filters.Status = PeriodStatus(strings.ToUpper(string(filters.Status)))
	if filters.Status != "" && filters.Status != PeriodStatusOpen && filters.Status != PeriodStatusClosed {
		return nil, shared.Invalid("status", "must be OPEN or CLOSED")
	}
	list, err := s.repo.List(ctx, tenantID, filters)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range list {
		list[i].IsCurrent = list[i].CurrentAt(now)
	}
	return list, nil
}

// Current returns the OPEN period covering now. It is a pure query.
func (s *Service) Current(ctx context.Context, tenantID int64) (Period, error) {
	now := s.now()
	p, err := s.repo.FindByDate(ctx, tenantID, now)
	if err != nil {
		return Period{}, err
	}
	if p.Status != PeriodStatusOpen {
		return Period{}, shared.ErrPeriodClosed
	}
	p.IsCurrent = true
	return p, nil
}

// Get resolves a period by code.
func (s *Service) Get(ctx context.Context, tenantID int64, code string) (Period, error) {
	p, err := s.repo.GetByCode(ctx, tenantID, strings.TrimSpace(code))
	if err != nil {
		return Period{}, err
	}
	p.IsCurrent = p.CurrentAt(s.now())
	return p, nil
}

// FindByDate resolves the period covering date regardless of status.
func (s *Service) FindByDate(ctx context.Context, tenantID int64, date time.Time) (Period, error) {
	return s.repo.FindByDate(ctx, tenantID, date)
}

// Create adds an OPEN period after checking the range against existing ones.
func (s *Service) Create(ctx context.Context, in CreateInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	overlap, err := s.repo.HasOverlap(ctx, in.TenantID, in.StartDate, in.EndDate)
	if err != nil {
		return Period{}, err
	}
	if overlap {
		return Period{}, shared.ErrPeriodOverlap
	}
	p, err := s.repo.Create(ctx, in)
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, p, in.ActorID, "period.create")
	return p, nil
}

// EnsureMonthly returns the period covering date, creating a YYYY-MM period when none exists.
func (s *Service) EnsureMonthly(ctx context.Context, tenantID int64, date time.Time) (Period, error) {
	p, err := s.repo.FindByDate(ctx, tenantID, date)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, shared.ErrPeriodNotFound) {
		return Period{}, err
	}
	start, end := MonthBounds(date)
	p, err = s.repo.Create(ctx, CreateInput{TenantID: tenantID, Code: MonthlyCode(date), StartDate: start, EndDate: end})
	if errors.Is(err, shared.ErrPeriodOverlap) {
		// lost the race to another writer, or a custom period already spans part of the month
		return s.repo.FindByDate(ctx, tenantID, date)
	}
	if err != nil {
		return Period{}, err
	}
	s.logger.Info("period auto-created", slog.Int64("tenant_id", tenantID), slog.String("code", p.Code))
	return p, nil
}

// Close transitions OPEN -> CLOSED. The row lock serialises against in-flight postings.
func (s *Service) Close(ctx context.Context, tenantID int64, code string, actorID int64) (Period, error) {
	var out Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetByCodeForUpdate(ctx, tenantID, strings.TrimSpace(code))
		if err != nil {
			return err
		}
		if err := ValidateTransition(current.Status, PeriodStatusClosed); err != nil {
			return err
		}
		closedAt := s.now()
		out, err = tx.UpdateStatus(ctx, current.ID, PeriodStatusClosed, &closedAt, &actorID)
		return err
	})
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, out, actorID, "period.close")
	return out, nil
}

// Reopen transitions CLOSED -> OPEN and clears the closing stamp. A period whose
// VAT summary was finalized stays CLOSED so the snapshot keeps matching the ledger.
func (s *Service) Reopen(ctx context.Context, tenantID int64, code string, actorID int64) (Period, error) {
	var out Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetByCodeForUpdate(ctx, tenantID, strings.TrimSpace(code))
		if err != nil {
			return err
		}
		if err := ValidateTransition(current.Status, PeriodStatusOpen); err != nil {
			return err
		}
		finalized, err := tx.HasFinalizedVAT(ctx, tenantID, current.ID)
		if err != nil {
			return err
		}
		if finalized {
			return fmt.Errorf("%w: %s cannot be reopened", shared.ErrVATSummaryFinalized, current.Code)
		}
		out, err = tx.UpdateStatus(ctx, current.ID, PeriodStatusOpen, nil, nil)
		return err
	})
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, out, actorID, "period.reopen")
	return out, nil
}

func (s *Service) record(ctx context.Context, p Period, actorID int64, action string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, common.AuditLog{
		TenantID: p.TenantID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "financial_period",
		EntityID: strconv.FormatInt(p.ID, 10),
		Meta:     map[string]any{"code": p.Code, "status": string(p.Status)},
	})
	if err != nil {
		s.logger.Warn("period audit", slog.String("action", action), slog.Any("error", err))
	}
}
