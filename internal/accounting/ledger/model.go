// Package ledger holds the per-account running balances and the append-only entry lines.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the running-balance projection of one chart account.
type Account struct {
	ID             int64
	TenantID       int64
	ChartAccountID int64
	AccountCode    string
	AccountName    string
	AccountType    string
	NormalBalance  string
	// Balance is the signed ledger value, sum(debit - credit).
	Balance     decimal.Decimal
	EntryCount  int64
	LastEntryAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DisplayBalance flips the sign for CREDIT-normal accounts so growth reads positive.
func (a Account) DisplayBalance() decimal.Decimal {
	return DisplayBalance(a.Balance, a.NormalBalance)
}

// DisplayBalance converts a signed ledger value into the normal-balance presentation.
func DisplayBalance(balance decimal.Decimal, normalBalance string) decimal.Decimal {
	if normalBalance == "CREDIT" {
		return balance.Neg()
	}
	return balance
}

// Entry is one posted line. Never updated or deleted after insert.
type Entry struct {
	ID              int64
	TenantID        int64
	JournalEntryID  int64
	LedgerAccountID int64
	ChartAccountID  int64
	LineNumber      int
	DebitAmount     decimal.Decimal
	CreditAmount    decimal.Decimal
	BalanceAfter    decimal.Decimal
	Description     string
	ReferenceType   string
	ReferenceID     string
	AccountCode     string
	AccountName     string
	AccountType     string
	EntryDate       time.Time
	CreatedAt       time.Time
}

// Signed returns debit minus credit.
func (e Entry) Signed() decimal.Decimal {
	return e.DebitAmount.Sub(e.CreditAmount)
}

// EntryFilters narrows ledger line listings.
type EntryFilters struct {
	AccountCode     string
	LedgerAccountID int64
	PeriodID        int64
	From            *time.Time
	To              *time.Time
}

// Drift describes a ledger account whose cached balance disagrees with its lines.
type Drift struct {
	LedgerAccountID int64
	AccountCode     string
	Cached          decimal.Decimal
	Derived         decimal.Decimal
}

// Imbalance describes a POSTED journal whose lines do not net to zero.
type Imbalance struct {
	JournalEntryID int64
	Number         int64
	TotalDebit     decimal.Decimal
	TotalCredit    decimal.Decimal
}

// IntegrityReport summarises a derivability and balance check for one tenant.
type IntegrityReport struct {
	TenantID        int64
	AccountsChecked int
	JournalsChecked int
	Drifts          []Drift
	Imbalances      []Imbalance
	CheckedAt       time.Time
}

// OK reports whether no discrepancy was found.
func (r IntegrityReport) OK() bool {
	return len(r.Drifts) == 0 && len(r.Imbalances) == 0
}
