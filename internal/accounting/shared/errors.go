package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation marks malformed input; never partially applied.
	ErrValidation = errors.New("accounting: validation failed")
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrPeriodClosed indicates the target period does not accept postings.
	ErrPeriodClosed = errors.New("accounting: period is closed")
	// ErrPeriodNotFound indicates no financial period covers the entry date.
	ErrPeriodNotFound = errors.New("accounting: financial period not found")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrAlreadyVoided indicates the entry has been neutralised before.
	ErrAlreadyVoided = errors.New("accounting: journal entry already voided")
	// ErrConcurrencyConflict indicates a concurrent writer won the race; retry the whole operation.
	ErrConcurrencyConflict = errors.New("accounting: concurrent update conflict")
	// ErrDuplicateIdempotencyKey is resolved internally by returning the original entry.
	ErrDuplicateIdempotencyKey = errors.New("accounting: idempotency key already used")
	// ErrAccountNotFound indicates a missing chart account.
	ErrAccountNotFound = errors.New("accounting: chart account not found")
	// ErrAccountInUse indicates a catalogue edit on an account referenced by postings.
	ErrAccountInUse = errors.New("accounting: chart account referenced by ledger entries")
	// ErrDuplicateAccountCode indicates the chart code already exists for the tenant.
	ErrDuplicateAccountCode = errors.New("accounting: chart account code already exists")
	// ErrInvalidPeriodTransition indicates status change not allowed.
	ErrInvalidPeriodTransition = errors.New("accounting: invalid period transition")
	// ErrPeriodOverlap indicates the requested period conflicts with an existing range.
	ErrPeriodOverlap = errors.New("accounting: period overlaps existing range")
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = errors.New("accounting: account mapping not found")
	// ErrUnknownTaxCode indicates a tax code absent from the rate table.
	ErrUnknownTaxCode = errors.New("accounting: unknown tax code")
	// ErrPeriodNotClosed indicates an operation that needs a CLOSED period.
	ErrPeriodNotClosed = errors.New("accounting: period is not closed")
	// ErrVATSummaryFinalized indicates the period summary is already frozen.
	ErrVATSummaryFinalized = errors.New("accounting: vat summary already finalized")
)

// ValidationError describes a single rejected field of a request.
type ValidationError struct {
	Field  string
	Line   int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("accounting: line %d %s: %s", e.Line, e.Field, e.Reason)
	}
	if e.Field != "" {
		return fmt.Sprintf("accounting: %s: %s", e.Field, e.Reason)
	}
	return "accounting: " + e.Reason
}

// Unwrap lets callers match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a field-level ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidLine builds a ValidationError for a 1-based journal line.
func InvalidLine(line int, field, reason string) error {
	return &ValidationError{Field: field, Line: line, Reason: reason}
}

// UnbalancedEntryError carries the totals of a rejected draft.
type UnbalancedEntryError struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Precision   int32
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("accounting: journal lines must balance: debits=%s credits=%s",
		FormatMoney(e.TotalDebit, e.Precision), FormatMoney(e.TotalCredit, e.Precision))
}

// Unwrap lets callers match ErrUnbalanced.
func (e *UnbalancedEntryError) Unwrap() error { return ErrUnbalanced }

// Kind returns a short label for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrUnbalanced):
		return "unbalanced"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnknownTaxCode):
		return "validation"
	case errors.Is(err, ErrPeriodClosed):
		return "period_closed"
	case errors.Is(err, ErrPeriodNotFound):
		return "period_not_found"
	case errors.Is(err, ErrJournalNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyVoided):
		return "already_voided"
	case errors.Is(err, ErrConcurrencyConflict):
		return "conflict"
	default:
		return "internal"
	}
}
