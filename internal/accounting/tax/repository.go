package tax

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Repository aggregates tax lines and stores finalized snapshots.
type Repository interface {
	Aggregate(ctx context.Context, tenantID, periodID int64) ([]SummaryLine, error)
	GetFinalized(ctx context.Context, tenantID, periodID int64) (Summary, bool, error)
	InsertFinalized(ctx context.Context, summary Summary) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a pgx backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// Aggregate includes VOIDED journals so that voids net out against their reversals.
func (r *repository) Aggregate(ctx context.Context, tenantID, periodID int64) ([]SummaryLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT le.reference_id, COALESCE(SUM(le.credit_amount), 0), COALESCE(SUM(le.debit_amount), 0), COUNT(*)
FROM ledger_entries le
JOIN journal_entries je ON je.id = le.journal_entry_id
WHERE le.tenant_id=$1 AND je.period_id=$2 AND le.reference_type=$3 AND je.status IN ('POSTED', 'VOIDED')
GROUP BY le.reference_id
ORDER BY le.reference_id`, tenantID, periodID, ReferenceType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SummaryLine
	for rows.Next() {
		var line SummaryLine
		if err := rows.Scan(&line.TaxCode, &line.OutputTax, &line.InputTax, &line.EntryCount); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func (r *repository) GetFinalized(ctx context.Context, tenantID, periodID int64) (Summary, bool, error) {
	var (
		s     Summary
		lines []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT tenant_id, period_id, period_code, lines, total_output, total_input, net_payable,
generated_at, finalized_at, finalized_by
FROM vat_summaries WHERE tenant_id=$1 AND period_id=$2`, tenantID, periodID).
		Scan(&s.TenantID, &s.PeriodID, &s.PeriodCode, &lines, &s.TotalOutput, &s.TotalInput, &s.NetPayable,
			&s.GeneratedAt, &s.FinalizedAt, &s.FinalizedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Summary{}, false, nil
		}
		return Summary{}, false, err
	}
	if err := json.Unmarshal(lines, &s.Lines); err != nil {
		return Summary{}, false, fmt.Errorf("tax: decode snapshot lines: %w", err)
	}
	s.Finalized = true
	return s, true, nil
}

func (r *repository) InsertFinalized(ctx context.Context, s Summary) error {
	lines, err := json.Marshal(s.Lines)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO vat_summaries (tenant_id, period_id, period_code, lines, total_output, total_input, net_payable,
generated_at, finalized_at, finalized_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.TenantID, s.PeriodID, s.PeriodCode, lines, s.TotalOutput, s.TotalInput, s.NetPayable, s.GeneratedAt, s.FinalizedAt, s.FinalizedBy)
	if shared.IsUniqueViolation(err, "uq_vat_summaries_period") {
		return shared.ErrVATSummaryFinalized
	}
	return err
}
