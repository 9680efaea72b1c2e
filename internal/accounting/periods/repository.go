package periods

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository persists financial periods.
type Repository interface {
	List(ctx context.Context, tenantID int64, filters Filters) ([]Period, error)
	GetByCode(ctx context.Context, tenantID int64, code string) (Period, error)
	FindByDate(ctx context.Context, tenantID int64, date time.Time) (Period, error)
	HasOverlap(ctx context.Context, tenantID int64, start, end time.Time) (bool, error)
	Create(ctx context.Context, in CreateInput) (Period, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional period operations.
type TxRepository interface {
	GetByCodeForUpdate(ctx context.Context, tenantID int64, code string) (Period, error)
	UpdateStatus(ctx context.Context, id int64, status PeriodStatus, closedAt *time.Time, closedBy *int64) (Period, error)
	HasFinalizedVAT(ctx context.Context, tenantID, periodID int64) (bool, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a pgx backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const periodColumns = `id, tenant_id, code, fiscal_year, start_date, end_date, status, closed_at, closed_by, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.TenantID, &p.Code, &p.FiscalYear, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, tenantID int64, filters Filters) ([]Period, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + periodColumns + ` FROM financial_periods WHERE tenant_id=$1`)
	args := []any{tenantID}
	if filters.Status != "" {
		args = append(args, filters.Status)
		sb.WriteString(fmt.Sprintf(" AND status=$%d", len(args)))
	}
	if filters.FiscalYear > 0 {
		args = append(args, filters.FiscalYear)
		sb.WriteString(fmt.Sprintf(" AND fiscal_year=$%d", len(args)))
	}
	sb.WriteString(" ORDER BY start_date DESC")
	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) GetByCode(ctx context.Context, tenantID int64, code string) (Period, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM financial_periods WHERE tenant_id=$1 AND code=$2`, tenantID, code))
}

func (r *repository) FindByDate(ctx context.Context, tenantID int64, date time.Time) (Period, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM financial_periods
WHERE tenant_id=$1 AND $2::date BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, tenantID, DateOnly(date)))
}

func (r *repository) HasOverlap(ctx context.Context, tenantID int64, start, end time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM financial_periods
WHERE tenant_id=$1 AND start_date <= $3::date AND end_date >= $2::date)`, tenantID, start, end).Scan(&exists)
	return exists, err
}

func (r *repository) Create(ctx context.Context, in CreateInput) (Period, error) {
	p, err := scanPeriod(r.pool.QueryRow(ctx, `INSERT INTO financial_periods (tenant_id, code, fiscal_year, start_date, end_date, status)
VALUES ($1, $2, $3, $4, $5, 'OPEN') RETURNING `+periodColumns, in.TenantID, in.Code, in.StartDate.Year(), in.StartDate, in.EndDate))
	if err != nil {
		if shared.IsExclusionViolation(err) || shared.IsUniqueViolation(err, "uq_financial_periods_code") {
			return Period{}, shared.ErrPeriodOverlap
		}
		return Period{}, fmt.Errorf("periods: insert: %w", err)
	}
	return p, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetByCodeForUpdate(ctx context.Context, tenantID int64, code string) (Period, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM financial_periods WHERE tenant_id=$1 AND code=$2 FOR UPDATE`, tenantID, code))
	if err != nil {
		return Period{}, shared.MapPgError(err)
	}
	return p, nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status PeriodStatus, closedAt *time.Time, closedBy *int64) (Period, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `UPDATE financial_periods SET status=$2, closed_at=$3, closed_by=$4, updated_at=NOW()
WHERE id=$1 RETURNING `+periodColumns, id, status, closedAt, closedBy))
	if err != nil {
		return Period{}, shared.MapPgError(err)
	}
	return p, nil
}

func (r *txRepository) HasFinalizedVAT(ctx context.Context, tenantID, periodID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM vat_summaries WHERE tenant_id=$1 AND period_id=$2 AND finalized_at IS NOT NULL)`, tenantID, periodID).Scan(&exists)
	return exists, err
}
