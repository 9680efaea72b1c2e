package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository reads ledger projections.
type Repository interface {
	ListAccounts(ctx context.Context, tenantID int64) ([]Account, error)
	ListEntries(ctx context.Context, tenantID int64, filters EntryFilters, page shared.PageRequest) ([]Entry, int, error)
	AccountDrifts(ctx context.Context, tenantID int64) (int, []Drift, error)
	UnbalancedJournals(ctx context.Context, tenantID int64) (int, []Imbalance, error)
	ListTenants(ctx context.Context) ([]int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a pgx backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ListAccounts(ctx context.Context, tenantID int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT la.id, la.tenant_id, la.chart_account_id, ca.code, ca.name, ca.type, ca.normal_balance,
la.balance, la.entry_count, la.last_entry_at, la.created_at, la.updated_at
FROM ledger_accounts la JOIN chart_accounts ca ON ca.id = la.chart_account_id
WHERE la.tenant_id=$1 ORDER BY ca.code`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.TenantID, &a.ChartAccountID, &a.AccountCode, &a.AccountName, &a.AccountType, &a.NormalBalance,
			&a.Balance, &a.EntryCount, &a.LastEntryAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) ListEntries(ctx context.Context, tenantID int64, filters EntryFilters, page shared.PageRequest) ([]Entry, int, error) {
	var where strings.Builder
	where.WriteString(" WHERE le.tenant_id=$1")
	args := []any{tenantID}
	add := func(clause string, value any) {
		args = append(args, value)
		where.WriteString(fmt.Sprintf(" AND "+clause, len(args)))
	}
	if filters.AccountCode != "" {
		add("ca.code=$%d", filters.AccountCode)
	}
	if filters.LedgerAccountID > 0 {
		add("le.ledger_account_id=$%d", filters.LedgerAccountID)
	}
	if filters.PeriodID > 0 {
		add("je.period_id=$%d", filters.PeriodID)
	}
	if filters.From != nil {
		add("je.entry_date >= $%d", *filters.From)
	}
	if filters.To != nil {
		add("je.entry_date <= $%d", *filters.To)
	}
	from := ` FROM ledger_entries le
JOIN journal_entries je ON je.id = le.journal_entry_id
JOIN ledger_accounts la ON la.id = le.ledger_account_id
JOIN chart_accounts ca ON ca.id = la.chart_account_id` + where.String()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, page.Limit(), page.Offset())
	rows, err := r.pool.Query(ctx, `SELECT le.id, le.tenant_id, le.journal_entry_id, le.ledger_account_id, la.chart_account_id, le.line_number,
le.debit_amount, le.credit_amount, le.balance_after, le.description, le.reference_type, le.reference_id,
ca.code, ca.name, ca.type, je.entry_date, le.created_at`+from+
		fmt.Sprintf(" ORDER BY je.entry_date, le.id LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.JournalEntryID, &e.LedgerAccountID, &e.ChartAccountID, &e.LineNumber,
			&e.DebitAmount, &e.CreditAmount, &e.BalanceAfter, &e.Description, &e.ReferenceType, &e.ReferenceID,
			&e.AccountCode, &e.AccountName, &e.AccountType, &e.EntryDate, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *repository) AccountDrifts(ctx context.Context, tenantID int64) (int, []Drift, error) {
	rows, err := r.pool.Query(ctx, `SELECT la.id, ca.code, la.balance, COALESCE(SUM(le.debit_amount - le.credit_amount), 0)
FROM ledger_accounts la
JOIN chart_accounts ca ON ca.id = la.chart_account_id
LEFT JOIN ledger_entries le ON le.ledger_account_id = la.id
WHERE la.tenant_id=$1
GROUP BY la.id, ca.code, la.balance
ORDER BY ca.code`, tenantID)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()
	var (
		checked int
		drifts  []Drift
	)
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.LedgerAccountID, &d.AccountCode, &d.Cached, &d.Derived); err != nil {
			return 0, nil, err
		}
		checked++
		if !d.Cached.Equal(d.Derived) {
			drifts = append(drifts, d)
		}
	}
	return checked, drifts, rows.Err()
}

func (r *repository) UnbalancedJournals(ctx context.Context, tenantID int64) (int, []Imbalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT je.id, je.number, je.total_debit, je.total_credit,
COALESCE(SUM(le.debit_amount), 0), COALESCE(SUM(le.credit_amount), 0)
FROM journal_entries je
LEFT JOIN ledger_entries le ON le.journal_entry_id = je.id
WHERE je.tenant_id=$1 AND je.status IN ('POSTED', 'VOIDED')
GROUP BY je.id
ORDER BY je.number`, tenantID)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()
	var (
		checked int
		out     []Imbalance
	)
	for rows.Next() {
		var (
			im             Imbalance
			lineDr, lineCr decimal.Decimal
		)
		if err := rows.Scan(&im.JournalEntryID, &im.Number, &im.TotalDebit, &im.TotalCredit, &lineDr, &lineCr); err != nil {
			return 0, nil, err
		}
		checked++
		if !im.TotalDebit.Equal(im.TotalCredit) || !lineDr.Equal(im.TotalDebit) || !lineCr.Equal(im.TotalCredit) {
			im.TotalDebit, im.TotalCredit = lineDr, lineCr
			out = append(out, im)
		}
	}
	return checked, out, rows.Err()
}

func (r *repository) ListTenants(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT tenant_id FROM ledger_accounts ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
