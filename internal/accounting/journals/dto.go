package journals

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

const maxIdempotencyKeyLen = 128

// voidKeyPrefix namespaces the keys of void reversals. Callers cannot use it.
const voidKeyPrefix = "void:"

func voidKey(originalID int64) string {
	return voidKeyPrefix + strconv.FormatInt(originalID, 10)
}

// TaxTreatment asks the engine to split Taxable lines with the tax service.
type TaxTreatment struct {
	Code string
	// Inclusive means the taxable line amounts are gross.
	Inclusive bool
	// AccountCode receives the generated tax lines.
	AccountCode string
}

// DraftLine is one requested line. Exactly one of Debit and Credit is positive.
type DraftLine struct {
	AccountCode   string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Description   string
	ReferenceType string
	ReferenceID   string
	Taxable       bool
}

// Amount returns the non-zero side.
func (l DraftLine) Amount() decimal.Decimal {
	if l.Debit.IsPositive() {
		return l.Debit
	}
	return l.Credit
}

// Draft is a posting request.
type Draft struct {
	EntryDate      time.Time
	Description    string
	SourceType     SourceType
	SourceModule   string
	SourceID       string
	IdempotencyKey string
	Tax            *TaxTreatment
	Lines          []DraftLine
}

func (d *Draft) normalize() {
	d.Description = strings.TrimSpace(d.Description)
	d.SourceModule = strings.ToUpper(strings.TrimSpace(d.SourceModule))
	d.SourceID = strings.TrimSpace(d.SourceID)
	d.IdempotencyKey = strings.TrimSpace(d.IdempotencyKey)
	d.SourceType = SourceType(strings.ToUpper(string(d.SourceType)))
	if d.SourceType == "" {
		d.SourceType = SourceTypeManual
	}
	if !d.EntryDate.IsZero() {
		y, m, day := d.EntryDate.Date()
		d.EntryDate = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	}
	for i := range d.Lines {
		d.Lines[i].AccountCode = strings.TrimSpace(d.Lines[i].AccountCode)
		d.Lines[i].Description = strings.TrimSpace(d.Lines[i].Description)
	}
	if d.Tax != nil {
		d.Tax.Code = strings.ToUpper(strings.TrimSpace(d.Tax.Code))
		d.Tax.AccountCode = strings.TrimSpace(d.Tax.AccountCode)
	}
}

// validate checks header fields and every line in isolation.
func (d Draft) validate(precision int32) error {
	if d.EntryDate.IsZero() {
		return shared.Invalid("entry_date", "required")
	}
	if !d.SourceType.Valid() {
		return shared.Invalid("source_type", "must be MANUAL or SYSTEM")
	}
	if len(d.IdempotencyKey) > maxIdempotencyKeyLen {
		return shared.Invalid("idempotency_key", "too long")
	}
	if strings.HasPrefix(strings.ToLower(d.IdempotencyKey), voidKeyPrefix) {
		return shared.Invalid("idempotency_key", "prefix "+voidKeyPrefix+" is reserved")
	}
	if len(d.Lines) < 2 {
		return shared.Invalid("lines", "at least two lines required")
	}
	taxable := false
	for i, line := range d.Lines {
		n := i + 1
		if line.AccountCode == "" {
			return shared.InvalidLine(n, "account_code", "required")
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return shared.InvalidLine(n, "amount", "must not be negative")
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return shared.InvalidLine(n, "amount", "exactly one of debit or credit must be positive")
		}
		if !shared.WithinPrecision(line.Amount(), precision) {
			return shared.InvalidLine(n, "amount", "exceeds currency precision")
		}
		taxable = taxable || line.Taxable
	}
	switch {
	case taxable && d.Tax == nil:
		return shared.Invalid("tax", "taxable lines require a tax treatment")
	case d.Tax != nil && !taxable:
		return shared.Invalid("tax", "tax treatment given but no line is taxable")
	case d.Tax != nil && d.Tax.AccountCode == "":
		return shared.Invalid("tax.account_code", "required")
	}
	return nil
}

// VoidInput wraps parameters for voiding.
type VoidInput struct {
	TenantID int64
	EntryID  int64
	ActorID  int64
	Reason   string
}

// ListFilters narrows journal listings.
type ListFilters struct {
	Status     JournalStatus
	SourceType SourceType
	PeriodID   int64
	From       *time.Time
	To         *time.Time
}
