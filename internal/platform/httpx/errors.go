// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps ledger errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrUnbalanced):
		Problem(w, http.StatusUnprocessableEntity, "Unbalanced Entry", err.Error())
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrUnknownTaxCode):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrJournalNotFound),
		errors.Is(err, shared.ErrAccountNotFound),
		errors.Is(err, shared.ErrPeriodNotFound),
		errors.Is(err, shared.ErrMappingNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrPeriodClosed),
		errors.Is(err, shared.ErrAlreadyVoided),
		errors.Is(err, shared.ErrInvalidPeriodTransition),
		errors.Is(err, shared.ErrPeriodOverlap),
		errors.Is(err, shared.ErrAccountInUse),
		errors.Is(err, shared.ErrDuplicateAccountCode),
		errors.Is(err, shared.ErrPeriodNotClosed),
		errors.Is(err, shared.ErrVATSummaryFinalized):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrConcurrencyConflict):
		Problem(w, http.StatusConflict, "Concurrent Update", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// IsServerError reports whether RespondError would answer with a 5xx.
func IsServerError(err error) bool {
	for _, known := range []error{
		shared.ErrValidation, shared.ErrUnbalanced, shared.ErrJournalNotFound, shared.ErrAccountNotFound,
		shared.ErrPeriodNotFound, shared.ErrMappingNotFound, shared.ErrPeriodClosed, shared.ErrAlreadyVoided,
		shared.ErrInvalidPeriodTransition, shared.ErrPeriodOverlap, shared.ErrAccountInUse,
		shared.ErrDuplicateAccountCode, shared.ErrConcurrencyConflict, shared.ErrUnknownTaxCode,
		shared.ErrPeriodNotClosed, shared.ErrVATSummaryFinalized, ErrForbidden, ErrUnauthorized,
	} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}
