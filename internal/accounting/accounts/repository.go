package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Repository persists the chart of accounts.
type Repository interface {
	List(ctx context.Context, tenantID int64) ([]Account, error)
	Get(ctx context.Context, tenantID, id int64) (Account, error)
	GetByCode(ctx context.Context, tenantID int64, code string) (Account, error)
	Create(ctx context.Context, in CreateInput) (Account, error)
	Update(ctx context.Context, account Account) (Account, error)
	HasLedgerEntries(ctx context.Context, tenantID, id int64) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a pgx backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, tenant_id, code, name, type, normal_balance, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) List(ctx context.Context, tenantID int64) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM chart_accounts WHERE tenant_id=$1 ORDER BY code`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, tenantID, id int64) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_accounts WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

func (r *repository) GetByCode(ctx context.Context, tenantID int64, code string) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_accounts WHERE tenant_id=$1 AND code=$2`, tenantID, code))
}

func (r *repository) Create(ctx context.Context, in CreateInput) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `INSERT INTO chart_accounts (tenant_id, code, name, type, normal_balance, is_active)
VALUES ($1,$2,$3,$4,$5,TRUE) RETURNING `+accountColumns, in.TenantID, in.Code, in.Name, in.Type, in.NormalBalance))
	if err != nil {
		if shared.IsUniqueViolation(err, "uq_chart_accounts_code") {
			return Account{}, shared.ErrDuplicateAccountCode
		}
		return Account{}, fmt.Errorf("accounts: insert: %w", err)
	}
	return a, nil
}

func (r *repository) Update(ctx context.Context, account Account) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `UPDATE chart_accounts SET code=$3, name=$4, type=$5, normal_balance=$6, is_active=$7, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2 RETURNING `+accountColumns,
		account.TenantID, account.ID, account.Code, account.Name, account.Type, account.NormalBalance, account.IsActive))
	if err != nil {
		if shared.IsUniqueViolation(err, "uq_chart_accounts_code") {
			return Account{}, shared.ErrDuplicateAccountCode
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) HasLedgerEntries(ctx context.Context, tenantID, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM ledger_entries le JOIN ledger_accounts la ON la.id = le.ledger_account_id
WHERE la.tenant_id=$1 AND la.chart_account_id=$2)`, tenantID, id).Scan(&exists)
	return exists, err
}
