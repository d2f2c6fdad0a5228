package balances

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Repository is the read side over posted journal lines. All line queries
// ignore drafts and use inclusive day bounds; a zero bound is open.
type Repository interface {
	Account(ctx context.Context, id int64) (accounts.Account, error)
	CompanyAccounts(ctx context.Context, companyID int64) ([]accounts.Account, error)
	AccountSums(ctx context.Context, accountID int64, r shared.DateRange) (Sums, error)
	CompanySums(ctx context.Context, companyID int64, r shared.DateRange) (map[int64]Sums, error)
	// AccountLines returns lines ordered by entry date, entry id and line position.
	AccountLines(ctx context.Context, accountID int64, r shared.DateRange) ([]LedgerLine, error)
	CompanyLines(ctx context.Context, companyID int64, r shared.DateRange) ([]LedgerLine, error)
	// RepairBalance overwrites the cached balance only while it still equals expected.
	RepairBalance(ctx context.Context, accountID int64, expected, computed decimal.Decimal) (bool, error)
}

const ledgerLineColumns = `e.id, e.number, e.type, e.date, COALESCE(e.description, ''), COALESCE(e.reference_type, ''),
COALESCE(e.reference_id, ''), COALESCE(e.reference_number, ''), l.id, l.account_id, l.position, l.description,
l.transaction_type, l.amount, l.document_ref`

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the Postgres backed read repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Account(ctx context.Context, id int64) (accounts.Account, error) {
	return accounts.NewRepository(r.db).Get(ctx, id)
}

func (r *repository) CompanyAccounts(ctx context.Context, companyID int64) ([]accounts.Account, error) {
	return accounts.NewRepository(r.db).List(ctx, accounts.ListAccountsFilter{CompanyID: companyID})
}

func (r *repository) AccountSums(ctx context.Context, accountID int64, dr shared.DateRange) (Sums, error) {
	where, args := rangeClause("l.account_id = $1", []any{accountID}, dr)
	var sums Sums
	err := r.db.QueryRow(ctx, `SELECT
COALESCE(SUM(CASE WHEN l.transaction_type = 'DEBIT' THEN l.amount END), 0),
COALESCE(SUM(CASE WHEN l.transaction_type = 'CREDIT' THEN l.amount END), 0)
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE `+where, args...).Scan(&sums.Debit, &sums.Credit)
	return sums, err
}

func (r *repository) CompanySums(ctx context.Context, companyID int64, dr shared.DateRange) (map[int64]Sums, error) {
	where, args := rangeClause("e.company_id = $1", []any{companyID}, dr)
	rows, err := r.db.Query(ctx, `SELECT l.account_id,
COALESCE(SUM(CASE WHEN l.transaction_type = 'DEBIT' THEN l.amount END), 0),
COALESCE(SUM(CASE WHEN l.transaction_type = 'CREDIT' THEN l.amount END), 0)
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE `+where+` GROUP BY l.account_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Sums)
	for rows.Next() {
		var (
			id   int64
			sums Sums
		)
		if err := rows.Scan(&id, &sums.Debit, &sums.Credit); err != nil {
			return nil, err
		}
		out[id] = sums
	}
	return out, rows.Err()
}

func (r *repository) AccountLines(ctx context.Context, accountID int64, dr shared.DateRange) ([]LedgerLine, error) {
	where, args := rangeClause("l.account_id = $1", []any{accountID}, dr)
	return r.lines(ctx, where, args)
}

func (r *repository) CompanyLines(ctx context.Context, companyID int64, dr shared.DateRange) ([]LedgerLine, error) {
	where, args := rangeClause("e.company_id = $1", []any{companyID}, dr)
	return r.lines(ctx, where, args)
}

func (r *repository) lines(ctx context.Context, where string, args []any) ([]LedgerLine, error) {
	rows, err := r.db.Query(ctx, `SELECT `+ledgerLineColumns+`
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE `+where+` ORDER BY e.date, e.id, l.position, l.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerLine
	for rows.Next() {
		line, err := scanLedgerLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func (r *repository) RepairBalance(ctx context.Context, accountID int64, expected, computed decimal.Decimal) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET current_balance=$3, updated_at=NOW()
WHERE id=$1 AND current_balance=$2`, accountID, expected, computed)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func rangeClause(base string, args []any, dr shared.DateRange) (string, []any) {
	parts := []string{base, "e.is_posted = true"}
	if !dr.From.IsZero() {
		args = append(args, shared.DateOnly(dr.From))
		parts = append(parts, fmt.Sprintf("e.date >= $%d", len(args)))
	}
	if !dr.To.IsZero() {
		args = append(args, shared.DateOnly(dr.To))
		parts = append(parts, fmt.Sprintf("e.date <= $%d", len(args)))
	}
	return strings.Join(parts, " AND "), args
}

func scanLedgerLine(row pgx.Row) (LedgerLine, error) {
	var (
		l      LedgerLine
		txType string
	)
	err := row.Scan(&l.EntryID, &l.EntryNumber, &l.EntryType, &l.Date, &l.EntryDesc, &l.ReferenceType, &l.ReferenceID,
		&l.ReferenceNumber, &l.LineID, &l.AccountID, &l.Position, &l.Description, &txType, &l.Amount, &l.DocumentRef)
	if err != nil {
		return LedgerLine{}, err
	}
	l.Type = shared.TransactionType(txType)
	return l, nil
}
