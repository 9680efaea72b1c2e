package mappings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Repository resolves and maintains account mappings.
type Repository interface {
	Get(ctx context.Context, tenantID int64, module, key string) (AccountMapping, error)
	List(ctx context.Context, tenantID int64, module string) ([]AccountMapping, error)
	Upsert(ctx context.Context, mapping AccountMapping) (AccountMapping, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a pgx backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const mappingColumns = `tenant_id, module, key, account_code, created_at, updated_at`

func scanMapping(row pgx.Row) (AccountMapping, error) {
	var m AccountMapping
	if err := row.Scan(&m.TenantID, &m.Module, &m.Key, &m.AccountCode, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, shared.ErrMappingNotFound
		}
		return AccountMapping{}, err
	}
	return m, nil
}

// Get resolves an account mapping for the specified key.
func (r *repository) Get(ctx context.Context, tenantID int64, module, key string) (AccountMapping, error) {
	if module == "" || key == "" {
		return AccountMapping{}, shared.Invalid("mapping", "module and key required")
	}
	m, err := scanMapping(r.db.QueryRow(ctx, `SELECT `+mappingColumns+` FROM account_mappings
WHERE tenant_id=$1 AND module=$2 AND key=$3`, tenantID, strings.ToUpper(module), strings.ToLower(key)))
	if errors.Is(err, shared.ErrMappingNotFound) {
		return AccountMapping{}, fmt.Errorf("%w: %s/%s", shared.ErrMappingNotFound, strings.ToUpper(module), key)
	}
	return m, err
}

func (r *repository) List(ctx context.Context, tenantID int64, module string) ([]AccountMapping, error) {
	rows, err := r.db.Query(ctx, `SELECT `+mappingColumns+` FROM account_mappings
WHERE tenant_id=$1 AND ($2 = '' OR module=$2) ORDER BY module, key`, tenantID, strings.ToUpper(module))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Upsert creates or repoints a mapping. The target account must exist in the tenant's chart.
func (r *repository) Upsert(ctx context.Context, mapping AccountMapping) (AccountMapping, error) {
	mapping.Normalize()
	if err := mapping.Validate(); err != nil {
		return AccountMapping{}, err
	}
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chart_accounts WHERE tenant_id=$1 AND code=$2)`,
		mapping.TenantID, mapping.AccountCode).Scan(&exists); err != nil {
		return AccountMapping{}, err
	}
	if !exists {
		return AccountMapping{}, fmt.Errorf("%w: %s", shared.ErrAccountNotFound, mapping.AccountCode)
	}
	return scanMapping(r.db.QueryRow(ctx, `INSERT INTO account_mappings (tenant_id, module, key, account_code)
VALUES ($1,$2,$3,$4)
ON CONFLICT (tenant_id, module, key) DO UPDATE SET account_code = EXCLUDED.account_code, updated_at = NOW()
RETURNING `+mappingColumns, mapping.TenantID, mapping.Module, mapping.Key, mapping.AccountCode))
}
