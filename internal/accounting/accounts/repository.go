package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	Get(ctx context.Context, id int64) (Account, error)
	List(ctx context.Context, filter ListAccountsFilter) ([]Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	Get(ctx context.Context, id int64) (Account, error)
	GetForUpdate(ctx context.Context, id int64) (Account, error)
	NumberExists(ctx context.Context, companyID int64, number string, excludeID int64) (bool, error)
	HighestNumberInRange(ctx context.Context, companyID int64, r shared.NumberRange) (*int, error)
	Insert(ctx context.Context, a Account) (Account, error)
	Update(ctx context.Context, a Account) (Account, error)
	AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) error
	Delete(ctx context.Context, id int64) error
	CountLines(ctx context.Context, id int64) (int64, error)
	CountChildren(ctx context.Context, id int64) (int64, error)
}

const accountColumns = `id, company_id, number, name, type, parent_id, opening_balance, opening_side,
current_balance, classification, description, is_active, created_at, updated_at`

const uniqueAccountNumber = "uq_accounts_company_number"

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the Postgres backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	return getAccount(ctx, r.db, id, false)
}

func (r *repository) List(ctx context.Context, filter ListAccountsFilter) ([]Account, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	add("company_id = $%d", filter.CompanyID)
	if filter.Type != "" {
		add("type = $%d", string(filter.Type))
	}
	if filter.IsActive != nil {
		add("is_active = $%d", *filter.IsActive)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		add("(name ILIKE '%%' || $%[1]d || '%%' OR number LIKE $%[1]d || '%%')", s)
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + strings.Join(where, " AND ") + ` ORDER BY number`
	rows, err := r.db.Query(ctx, query, args...)
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

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Get(ctx context.Context, id int64) (Account, error) {
	return getAccount(ctx, r.tx, id, false)
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Account, error) {
	return getAccount(ctx, r.tx, id, true)
}

func (r *txRepository) NumberExists(ctx context.Context, companyID int64, number string, excludeID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE company_id=$1 AND number=$2 AND id<>$3)`,
		companyID, number, excludeID).Scan(&exists)
	return exists, err
}

func (r *txRepository) HighestNumberInRange(ctx context.Context, companyID int64, nr shared.NumberRange) (*int, error) {
	var highest *int64
	err := r.tx.QueryRow(ctx, `SELECT MAX(n) FROM (
	SELECT CASE WHEN number ~ '^[0-9]{1,9}$' THEN number::int END AS n FROM accounts WHERE company_id=$1
) s WHERE n BETWEEN $2 AND $3`, companyID, nr.Min, nr.Max).Scan(&highest)
	if err != nil {
		return nil, err
	}
	if highest == nil {
		return nil, nil
	}
	v := int(*highest)
	return &v, nil
}

func (r *txRepository) Insert(ctx context.Context, a Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (company_id, number, name, type, parent_id, opening_balance, opening_side,
current_balance, classification, description, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING `+accountColumns,
		a.CompanyID, a.Number, a.Name, string(a.Type), a.ParentID, a.OpeningBalance, string(a.OpeningSide),
		a.CurrentBalance, string(a.Classification), a.Description, a.IsActive)
	inserted, err := scanAccount(row)
	if err != nil {
		if isUniqueViolation(err, uniqueAccountNumber) {
			return Account{}, shared.ErrDuplicateAccountNumber
		}
		return Account{}, err
	}
	return inserted, nil
}

func (r *txRepository) Update(ctx context.Context, a Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `UPDATE accounts SET number=$2, name=$3, type=$4, parent_id=$5, opening_balance=$6,
opening_side=$7, classification=$8, description=$9, is_active=$10, updated_at=NOW()
WHERE id=$1 RETURNING `+accountColumns,
		a.ID, a.Number, a.Name, string(a.Type), a.ParentID, a.OpeningBalance, string(a.OpeningSide),
		string(a.Classification), a.Description, a.IsActive)
	updated, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		if isUniqueViolation(err, uniqueAccountNumber) {
			return Account{}, shared.ErrDuplicateAccountNumber
		}
		return Account{}, err
	}
	return updated, nil
}

func (r *txRepository) AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) error {
	return AdjustBalance(ctx, r.tx, id, delta)
}

func (r *txRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) CountLines(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM journal_lines WHERE account_id=$1`, id).Scan(&n)
	return n, err
}

func (r *txRepository) CountChildren(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE parent_id=$1`, id).Scan(&n)
	return n, err
}

// AdjustBalance applies delta to the cached balance as a single atomic increment.
// Journal posting and reversal share it so balance writes never read-modify-write.
func AdjustBalance(ctx context.Context, q queryer, id int64, delta decimal.Decimal) error {
	cmd, err := q.Exec(ctx, `UPDATE accounts SET current_balance = current_balance + $2, updated_at=NOW() WHERE id=$1`, id, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func getAccount(ctx context.Context, q queryer, id int64, lock bool) (Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	if lock {
		query += ` FOR UPDATE`
	}
	a, err := scanAccount(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// ScanAccount reads a row selected with the canonical account column list.
func ScanAccount(row pgx.Row) (Account, error) {
	return scanAccount(row)
}

// Columns is the canonical select list for accounts.
func Columns(alias string) string {
	if alias == "" {
		return accountColumns
	}
	parts := strings.Split(accountColumns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		a              Account
		accountType    string
		openingSide    string
		classification string
	)
	err := row.Scan(&a.ID, &a.CompanyID, &a.Number, &a.Name, &accountType, &a.ParentID, &a.OpeningBalance, &openingSide,
		&a.CurrentBalance, &classification, &a.Description, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	a.Type = shared.AccountType(accountType)
	a.OpeningSide = shared.TransactionType(openingSide)
	a.Classification = Classification(classification)
	return a, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	return false
}
