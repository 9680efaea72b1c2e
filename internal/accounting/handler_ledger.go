package accounting

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type ledgerAccountResponse struct {
	ChartAccountID int64           `json:"chart_account_id"`
	AccountCode    string          `json:"account_code"`
	AccountName    string          `json:"account_name"`
	AccountType    string          `json:"account_type"`
	NormalBalance  string          `json:"normal_balance"`
	Balance        decimal.Decimal `json:"balance"`
	DisplayBalance decimal.Decimal `json:"display_balance"`
	EntryCount     int64           `json:"entry_count"`
	LastEntryAt    *time.Time      `json:"last_entry_at,omitempty"`
}

type ledgerEntryResponse struct {
	ID             int64           `json:"id"`
	JournalEntryID int64           `json:"journal_entry_id"`
	LineNumber     int             `json:"line_number"`
	EntryDate      string          `json:"entry_date"`
	AccountCode    string          `json:"account_code"`
	AccountName    string          `json:"account_name"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	Description    string          `json:"description,omitempty"`
	ReferenceType  string          `json:"reference_type,omitempty"`
	ReferenceID    string          `json:"reference_id,omitempty"`
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	principal, _ := common.PrincipalFromContext(r.Context())
	accounts, err := h.svc.Ledger.ListAccounts(r.Context(), principal.TenantID)
	if err != nil {
		h.fail(w, "list ledger accounts", err)
		return
	}
	out := make([]ledgerAccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, ledgerAccountResponse{
			ChartAccountID: a.ChartAccountID,
			AccountCode:    a.AccountCode,
			AccountName:    a.AccountName,
			AccountType:    a.AccountType,
			NormalBalance:  a.NormalBalance,
			Balance:        a.Balance,
			DisplayBalance: a.DisplayBalance(),
			EntryCount:     a.EntryCount,
			LastEntryAt:    a.LastEntryAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	principal, _ := common.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	filters := ledger.EntryFilters{AccountCode: q.Get("account_code")}
	for name, dst := range map[string]*int64{"ledger_account_id": &filters.LedgerAccountID, "period_id": &filters.PeriodID} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.Invalid(name, "must be an integer"))
			return
		}
		*dst = v
	}
	var err error
	if filters.From, filters.To, err = httpx.DateRange(q); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, page, err := h.svc.Ledger.ListEntries(r.Context(), principal.TenantID, filters, common.PageFromQuery(q))
	if err != nil {
		h.fail(w, "list ledger entries", err)
		return
	}
	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ledgerEntryResponse{
			ID:             e.ID,
			JournalEntryID: e.JournalEntryID,
			LineNumber:     e.LineNumber,
			EntryDate:      dateString(e.EntryDate),
			AccountCode:    e.AccountCode,
			AccountName:    e.AccountName,
			Debit:          e.DebitAmount,
			Credit:         e.CreditAmount,
			BalanceAfter:   e.BalanceAfter,
			Description:    e.Description,
			ReferenceType:  e.ReferenceType,
			ReferenceID:    e.ReferenceID,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out, "pagination": page})
}

func (h *Handler) integrity(w http.ResponseWriter, r *http.Request) {
	principal, _ := common.PrincipalFromContext(r.Context())
	report, err := h.svc.Ledger.CheckIntegrity(r.Context(), principal.TenantID)
	if err != nil {
		h.fail(w, "check integrity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"ok":               report.OK(),
		"accounts_checked": report.AccountsChecked,
		"journals_checked": report.JournalsChecked,
		"drifts":           report.Drifts,
		"imbalances":       report.Imbalances,
		"checked_at":       report.CheckedAt,
	})
}
