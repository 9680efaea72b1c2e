package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	Get(ctx context.Context, tenantID, id int64) (JournalEntry, error)
	GetByIdempotencyKey(ctx context.Context, tenantID int64, key string) (JournalEntry, error)
	List(ctx context.Context, tenantID int64, filters ListFilters, page common.PageRequest) ([]JournalEntry, int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AccountRef is a chart account as seen by the posting path.
type AccountRef struct {
	ChartAccountID int64
	Code           string
	Name           string
	Type           string
	IsActive       bool
}

// LedgerState is a locked ledger account row.
type LedgerState struct {
	LedgerAccountID int64
	ChartAccountID  int64
	Balance         decimal.Decimal
}

// TxRepository exposes methods available within a posting transaction.
type TxRepository interface {
	ResolveAccounts(ctx context.Context, tenantID int64, codes []string) (map[string]AccountRef, error)
	// LockPeriodForPosting takes the covering period row FOR SHARE so a concurrent close waits.
	LockPeriodForPosting(ctx context.Context, tenantID int64, date time.Time) (periods.Period, error)
	NextJournalNumber(ctx context.Context, tenantID int64) (int64, error)
	InsertJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertDraftLines(ctx context.Context, tenantID, journalID int64, lines []ledger.Entry) error
	GetDraftLines(ctx context.Context, tenantID, journalID int64) ([]ledger.Entry, error)
	GetPostedLines(ctx context.Context, tenantID, journalID int64) ([]ledger.Entry, error)
	// LockLedgerAccounts creates missing ledger accounts and locks all of them in chart account order.
	LockLedgerAccounts(ctx context.Context, tenantID int64, chartAccountIDs []int64) (map[int64]LedgerState, error)
	InsertLedgerEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error)
	UpdateLedgerBalance(ctx context.Context, ledgerAccountID int64, balance decimal.Decimal, entries int, at time.Time) error
	GetJournalForUpdate(ctx context.Context, tenantID, id int64) (JournalEntry, error)
	MarkPosted(ctx context.Context, tenantID, id, periodID int64, postDate time.Time) error
	MarkVoided(ctx context.Context, tenantID, id, reversalID int64, reason string, actorID int64, at time.Time) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a pgx backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const journalColumns = `id, tenant_id, number, period_id, entry_date, post_date, description, source_type, source_module, source_id,
status, total_debit, total_credit, tax_amount, tax_code, is_reversal, reversed_journal_id, reversed_by_journal_id,
void_reason, voided_at, voided_by, idempotency_key, created_by, created_at, updated_at`

const lineColumns = `le.id, le.tenant_id, le.journal_entry_id, le.ledger_account_id, la.chart_account_id, le.line_number,
le.debit_amount, le.credit_amount, le.balance_after, le.description, le.reference_type, le.reference_id,
ca.code, ca.name, ca.type, le.created_at`

func scanJournal(row pgx.Row) (JournalEntry, error) {
	var (
		e   JournalEntry
		key *string
	)
	err := row.Scan(&e.ID, &e.TenantID, &e.Number, &e.PeriodID, &e.EntryDate, &e.PostDate, &e.Description, &e.SourceType,
		&e.SourceModule, &e.SourceID, &e.Status, &e.TotalDebit, &e.TotalCredit, &e.TaxAmount, &e.TaxCode, &e.IsReversal,
		&e.ReversedJournalID, &e.ReversedByJournalID, &e.VoidReason, &e.VoidedAt, &e.VoidedBy, &key, &e.CreatedBy,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	if key != nil {
		e.IdempotencyKey = *key
	}
	return e, nil
}

func collectLines(rows pgx.Rows) ([]ledger.Entry, error) {
	defer rows.Close()
	var out []ledger.Entry
	for rows.Next() {
		var l ledger.Entry
		if err := rows.Scan(&l.ID, &l.TenantID, &l.JournalEntryID, &l.LedgerAccountID, &l.ChartAccountID, &l.LineNumber,
			&l.DebitAmount, &l.CreditAmount, &l.BalanceAfter, &l.Description, &l.ReferenceType, &l.ReferenceID,
			&l.AccountCode, &l.AccountName, &l.AccountType, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func postedLines(ctx context.Context, q querier, tenantID, journalID int64) ([]ledger.Entry, error) {
	rows, err := q.Query(ctx, `SELECT `+lineColumns+`
FROM ledger_entries le
JOIN ledger_accounts la ON la.id = le.ledger_account_id
JOIN chart_accounts ca ON ca.id = la.chart_account_id
WHERE le.tenant_id=$1 AND le.journal_entry_id=$2 ORDER BY le.line_number`, tenantID, journalID)
	if err != nil {
		return nil, err
	}
	return collectLines(rows)
}

func draftLines(ctx context.Context, q querier, tenantID, journalID int64) ([]ledger.Entry, error) {
	rows, err := q.Query(ctx, `SELECT dl.id, dl.tenant_id, dl.journal_entry_id, 0::bigint, dl.chart_account_id, dl.line_number,
dl.debit_amount, dl.credit_amount, 0::numeric, dl.description, dl.reference_type, dl.reference_id,
ca.code, ca.name, ca.type, dl.created_at
FROM journal_draft_lines dl
JOIN chart_accounts ca ON ca.id = dl.chart_account_id
WHERE dl.tenant_id=$1 AND dl.journal_entry_id=$2 ORDER BY dl.line_number`, tenantID, journalID)
	if err != nil {
		return nil, err
	}
	return collectLines(rows)
}

func withLines(ctx context.Context, q querier, e JournalEntry) (JournalEntry, error) {
	var err error
	if e.Status == JournalStatusDraft {
		e.Lines, err = draftLines(ctx, q, e.TenantID, e.ID)
	} else {
		e.Lines, err = postedLines(ctx, q, e.TenantID, e.ID)
	}
	return e, err
}

func (r *repository) Get(ctx context.Context, tenantID, id int64) (JournalEntry, error) {
	e, err := scanJournal(r.pool.QueryRow(ctx, `SELECT `+journalColumns+` FROM journal_entries WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if err != nil {
		return JournalEntry{}, err
	}
	return withLines(ctx, r.pool, e)
}

func (r *repository) GetByIdempotencyKey(ctx context.Context, tenantID int64, key string) (JournalEntry, error) {
	e, err := scanJournal(r.pool.QueryRow(ctx, `SELECT `+journalColumns+` FROM journal_entries WHERE tenant_id=$1 AND idempotency_key=$2`, tenantID, key))
	if err != nil {
		return JournalEntry{}, err
	}
	return withLines(ctx, r.pool, e)
}

func (r *repository) List(ctx context.Context, tenantID int64, filters ListFilters, page common.PageRequest) ([]JournalEntry, int, error) {
	var where strings.Builder
	where.WriteString(" WHERE tenant_id=$1")
	args := []any{tenantID}
	add := func(clause string, value any) {
		args = append(args, value)
		where.WriteString(fmt.Sprintf(" AND "+clause, len(args)))
	}
	if filters.Status != "" {
		add("status=$%d", filters.Status)
	}
	if filters.SourceType != "" {
		add("source_type=$%d", filters.SourceType)
	}
	if filters.PeriodID > 0 {
		add("period_id=$%d", filters.PeriodID)
	}
	if filters.From != nil {
		add("entry_date >= $%d", *filters.From)
	}
	if filters.To != nil {
		add("entry_date <= $%d", *filters.To)
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, page.Limit(), page.Offset())
	rows, err := r.pool.Query(ctx, `SELECT `+journalColumns+` FROM journal_entries`+where.String()+
		fmt.Sprintf(" ORDER BY number DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []JournalEntry
	for rows.Next() {
		e, err := scanJournal(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// WithTx runs fn in a READ COMMITTED transaction; correctness comes from explicit row locks.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	return shared.MapPgError(err)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) ResolveAccounts(ctx context.Context, tenantID int64, codes []string) (map[string]AccountRef, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, code, name, type, is_active FROM chart_accounts WHERE tenant_id=$1 AND code = ANY($2)`, tenantID, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]AccountRef, len(codes))
	for rows.Next() {
		var a AccountRef
		if err := rows.Scan(&a.ChartAccountID, &a.Code, &a.Name, &a.Type, &a.IsActive); err != nil {
			return nil, err
		}
		out[a.Code] = a
	}
	return out, rows.Err()
}

func (r *txRepository) LockPeriodForPosting(ctx context.Context, tenantID int64, date time.Time) (periods.Period, error) {
	var p periods.Period
	err := r.tx.QueryRow(ctx, `SELECT id, tenant_id, code, fiscal_year, start_date, end_date, status, closed_at, closed_by, created_at, updated_at
FROM financial_periods WHERE tenant_id=$1 AND $2::date BETWEEN start_date AND end_date
ORDER BY start_date LIMIT 1 FOR SHARE`, tenantID, date).
		Scan(&p.ID, &p.TenantID, &p.Code, &p.FiscalYear, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.Period{}, shared.ErrPeriodNotFound
		}
		return periods.Period{}, err
	}
	return p, nil
}

func (r *txRepository) NextJournalNumber(ctx context.Context, tenantID int64) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_sequences (tenant_id, last_number) VALUES ($1, 1)
ON CONFLICT (tenant_id) DO UPDATE SET last_number = journal_sequences.last_number + 1
RETURNING last_number`, tenantID).Scan(&next)
	return next, err
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	var key *string
	if e.IdempotencyKey != "" {
		key = &e.IdempotencyKey
	}
	inserted, err := scanJournal(r.tx.QueryRow(ctx, `INSERT INTO journal_entries (tenant_id, number, period_id, entry_date, post_date,
description, source_type, source_module, source_id, status, total_debit, total_credit, tax_amount, tax_code, is_reversal,
reversed_journal_id, idempotency_key, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
RETURNING `+journalColumns,
		e.TenantID, e.Number, e.PeriodID, e.EntryDate, e.PostDate, e.Description, e.SourceType, e.SourceModule, e.SourceID,
		e.Status, e.TotalDebit, e.TotalCredit, e.TaxAmount, e.TaxCode, e.IsReversal, e.ReversedJournalID, key, e.CreatedBy))
	switch {
	case err == nil:
		return inserted, nil
	case shared.IsUniqueViolation(err, "uq_journal_entries_idempotency"):
		return JournalEntry{}, shared.ErrDuplicateIdempotencyKey
	case shared.IsUniqueViolation(err, "uq_journal_entries_reversed"):
		return JournalEntry{}, shared.ErrAlreadyVoided
	default:
		return JournalEntry{}, fmt.Errorf("journals: insert header: %w", err)
	}
}

func (r *txRepository) InsertDraftLines(ctx context.Context, tenantID, journalID int64, lines []ledger.Entry) error {
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`INSERT INTO journal_draft_lines (tenant_id, journal_entry_id, chart_account_id, line_number, debit_amount,
credit_amount, description, reference_type, reference_id) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			tenantID, journalID, l.ChartAccountID, l.LineNumber, l.DebitAmount, l.CreditAmount, l.Description, l.ReferenceType, l.ReferenceID)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) GetDraftLines(ctx context.Context, tenantID, journalID int64) ([]ledger.Entry, error) {
	return draftLines(ctx, r.tx, tenantID, journalID)
}

func (r *txRepository) GetPostedLines(ctx context.Context, tenantID, journalID int64) ([]ledger.Entry, error) {
	return postedLines(ctx, r.tx, tenantID, journalID)
}

func (r *txRepository) LockLedgerAccounts(ctx context.Context, tenantID int64, chartAccountIDs []int64) (map[int64]LedgerState, error) {
	if _, err := r.tx.Exec(ctx, `INSERT INTO ledger_accounts (tenant_id, chart_account_id)
SELECT $1, unnest($2::bigint[]) ON CONFLICT (tenant_id, chart_account_id) DO NOTHING`, tenantID, chartAccountIDs); err != nil {
		return nil, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, chart_account_id, balance FROM ledger_accounts
WHERE tenant_id=$1 AND chart_account_id = ANY($2) ORDER BY chart_account_id FOR UPDATE`, tenantID, chartAccountIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]LedgerState, len(chartAccountIDs))
	for rows.Next() {
		var s LedgerState
		if err := rows.Scan(&s.LedgerAccountID, &s.ChartAccountID, &s.Balance); err != nil {
			return nil, err
		}
		out[s.ChartAccountID] = s
	}
	return out, rows.Err()
}

func (r *txRepository) InsertLedgerEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries (tenant_id, journal_entry_id, ledger_account_id, line_number, debit_amount,
credit_amount, balance_after, description, reference_type, reference_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at`,
		e.TenantID, e.JournalEntryID, e.LedgerAccountID, e.LineNumber, e.DebitAmount, e.CreditAmount, e.BalanceAfter,
		e.Description, e.ReferenceType, e.ReferenceID).Scan(&e.ID, &e.CreatedAt)
	return e, err
}

func (r *txRepository) UpdateLedgerBalance(ctx context.Context, ledgerAccountID int64, balance decimal.Decimal, entries int, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE ledger_accounts SET balance=$2, entry_count=entry_count+$3, last_entry_at=$4, updated_at=NOW()
WHERE id=$1`, ledgerAccountID, balance, entries, at)
	return err
}

func (r *txRepository) GetJournalForUpdate(ctx context.Context, tenantID, id int64) (JournalEntry, error) {
	return scanJournal(r.tx.QueryRow(ctx, `SELECT `+journalColumns+` FROM journal_entries WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id))
}

func (r *txRepository) MarkPosted(ctx context.Context, tenantID, id, periodID int64, postDate time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='POSTED', period_id=$3, post_date=$4, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2 AND status='DRAFT'`, tenantID, id, periodID, postDate)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) MarkVoided(ctx context.Context, tenantID, id, reversalID int64, reason string, actorID int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='VOIDED', reversed_by_journal_id=$3, void_reason=$4, voided_by=$5,
voided_at=$6, updated_at=NOW() WHERE tenant_id=$1 AND id=$2 AND status='POSTED'`, tenantID, id, reversalID, reason, actorID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAlreadyVoided
	}
	return nil
}
