package journals

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
)

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft  JournalStatus = "DRAFT"
	JournalStatusPosted JournalStatus = "POSTED"
	JournalStatusVoided JournalStatus = "VOIDED"
)

// SourceType tells manual entries apart from system-originated ones.
type SourceType string

const (
	SourceTypeManual SourceType = "MANUAL"
	SourceTypeSystem SourceType = "SYSTEM"
)

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	return t == SourceTypeManual || t == SourceTypeSystem
}

// JournalEntry is the header of a posting. Once POSTED only the status and
// the void linkage fields change.
type JournalEntry struct {
	ID                  int64
	TenantID            int64
	Number              int64
	PeriodID            *int64
	EntryDate           time.Time
	PostDate            *time.Time
	Description         string
	SourceType          SourceType
	SourceModule        string
	SourceID            string
	Status              JournalStatus
	TotalDebit          decimal.Decimal
	TotalCredit         decimal.Decimal
	TaxAmount           decimal.Decimal
	TaxCode             string
	IsReversal          bool
	ReversedJournalID   *int64
	ReversedByJournalID *int64
	VoidReason          string
	VoidedAt            *time.Time
	VoidedBy            *int64
	IdempotencyKey      string
	CreatedBy           int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Lines               []ledger.Entry
}

// Balanced reports whether header totals agree with each other and with the lines.
func (e JournalEntry) Balanced() bool {
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range e.Lines {
		debit = debit.Add(line.DebitAmount)
		credit = credit.Add(line.CreditAmount)
	}
	return debit.Equal(credit) && debit.Equal(e.TotalDebit) && credit.Equal(e.TotalCredit)
}
