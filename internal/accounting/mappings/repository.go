package mappings

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Repository stores per-company account mapping overrides.
type Repository interface {
	ForCompany(ctx context.Context, companyID int64) ([]AccountMapping, error)
	Upsert(ctx context.Context, m AccountMapping) (AccountMapping, error)
	Delete(ctx context.Context, companyID int64, key string) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// normalizeKey upper-cases keys so CASH and cash address the same override.
func normalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

func (r *repository) ForCompany(ctx context.Context, companyID int64) ([]AccountMapping, error) {
	rows, err := r.db.Query(ctx, `SELECT company_id, key, account_number, updated_at
FROM ledger_account_mappings WHERE company_id = $1 ORDER BY key`, companyID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (AccountMapping, error) {
		var m AccountMapping
		err := row.Scan(&m.CompanyID, &m.Key, &m.AccountNumber, &m.UpdatedAt)
		return m, err
	})
}

func (r *repository) Upsert(ctx context.Context, m AccountMapping) (AccountMapping, error) {
	if m.CompanyID <= 0 {
		return AccountMapping{}, shared.ErrCompanyRequired
	}
	var out AccountMapping
	err := r.db.QueryRow(ctx, `INSERT INTO ledger_account_mappings (company_id, key, account_number, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (company_id, key) DO UPDATE SET account_number = EXCLUDED.account_number, updated_at = NOW()
RETURNING company_id, key, account_number, updated_at`,
		m.CompanyID, normalizeKey(m.Key), strings.TrimSpace(m.AccountNumber)).
		Scan(&out.CompanyID, &out.Key, &out.AccountNumber, &out.UpdatedAt)
	if err != nil {
		return AccountMapping{}, err
	}
	return out, nil
}

func (r *repository) Delete(ctx context.Context, companyID int64, key string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM ledger_account_mappings WHERE company_id = $1 AND key = $2`, companyID, normalizeKey(key))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrMappingNotFound
	}
	return nil
}
