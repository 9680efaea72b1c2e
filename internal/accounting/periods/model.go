package periods

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusClosed PeriodStatus = "CLOSED"
)

// Period represents a fiscal period window.
type Period struct {
	ID         int64
	TenantID   int64
	Code       string
	FiscalYear int
	StartDate  time.Time
	EndDate    time.Time
	Status     PeriodStatus
	ClosedAt   *time.Time
	ClosedBy   *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// IsCurrent is computed by List; never persisted.
	IsCurrent bool
}

// Covers reports whether date falls inside the period, both bounds inclusive.
func (p Period) Covers(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(DateOnly(p.StartDate)) && !d.After(DateOnly(p.EndDate))
}

// CurrentAt reports whether the period is OPEN and covers now.
func (p Period) CurrentAt(now time.Time) bool {
	return p.Status == PeriodStatusOpen && p.Covers(now)
}

// DateOnly truncates t to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthlyCode returns the YYYY-MM code used for lazily created periods.
func MonthlyCode(date time.Time) string {
	return fmt.Sprintf("%04d-%02d", date.Year(), int(date.Month()))
}

// MonthBounds returns the first and last day of date's month.
func MonthBounds(date time.Time) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

// Filters narrows period listings.
type Filters struct {
	Status     PeriodStatus
	FiscalYear int
}

// CreateInput describes a new period.
type CreateInput struct {
	TenantID  int64
	Code      string
	StartDate time.Time
	EndDate   time.Time
	ActorID   int64
}

// Validate normalises and checks the input.
func (in *CreateInput) Validate() error {
	in.Code = strings.TrimSpace(in.Code)
	if in.TenantID == 0 {
		return shared.Invalid("tenant_id", "required")
	}
	if in.Code == "" {
		return shared.Invalid("code", "required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return shared.Invalid("date_range", "start and end dates required")
	}
	in.StartDate = DateOnly(in.StartDate)
	in.EndDate = DateOnly(in.EndDate)
	if in.EndDate.Before(in.StartDate) {
		return shared.Invalid("date_range", "end date before start date")
	}
	return nil
}

var allowedTransitions = map[PeriodStatus]PeriodStatus{
	PeriodStatusOpen:   PeriodStatusClosed,
	PeriodStatusClosed: PeriodStatusOpen,
}

// ValidateTransition enforces OPEN -> CLOSED -> OPEN.
func ValidateTransition(from, to PeriodStatus) error {
	if next, ok := allowedTransitions[from]; ok && next == to {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidPeriodTransition, from, to)
}
