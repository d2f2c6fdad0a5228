package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	Get(ctx context.Context, id int64) (JournalEntry, error)
	List(ctx context.Context, filter ListEntriesFilter) ([]JournalEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	// Accounts returns the accounts referenced by ids keyed by id; missing ids are absent.
	Accounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error)
	NextEntryNumber(ctx context.Context, companyID int64) (string, error)
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	GetForUpdate(ctx context.Context, id int64) (JournalEntry, error)
	// FindByReference locks the non-reversal entry created for a source document.
	FindByReference(ctx context.Context, companyID int64, refType, refID string) (JournalEntry, error)
	UpdateHeader(ctx context.Context, entry JournalEntry) error
	ReplaceLines(ctx context.Context, entryID int64, lines []JournalLine) ([]JournalLine, error)
	DeleteEntry(ctx context.Context, id int64) error
	// MarkPosted flips a draft to posted and reports false when it was already posted.
	MarkPosted(ctx context.Context, id int64, at time.Time) (bool, error)
	LinkReversal(ctx context.Context, originalID, reversalID int64) error
	AdjustBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error
}

const (
	entryColumns = `id, company_id, number, date, type, reference_type, reference_id, reference_number, description,
total_debit, total_credit, is_posted, posted_at, reversal_of_id, reversed_by_id, created_by, created_at, updated_at`
	lineColumns = `id, entry_id, account_id, description, transaction_type, amount, document_ref, position`

	sequenceJournalEntry = "journal_entry"
	uniqueEntryNumber    = "uq_journal_entries_company_number"
)

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the Postgres backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return getEntry(ctx, r.db, id, false)
}

func (r *repository) List(ctx context.Context, filter ListEntriesFilter) ([]JournalEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	add("company_id = $%d", filter.CompanyID)
	if filter.Posted != nil {
		add("is_posted = $%d", *filter.Posted)
	}
	if filter.Type != "" {
		add("type = $%d", string(filter.Type))
	}
	if !filter.Range.From.IsZero() {
		add("date >= $%d", shared.DateOnly(filter.Range.From))
	}
	if !filter.Range.To.IsZero() {
		add("date <= $%d", shared.DateOnly(filter.Range.To))
	}
	if filter.ReferenceType != "" {
		add("reference_type = $%d", filter.ReferenceType)
	}
	if filter.ReferenceID != "" {
		add("reference_id = $%d", filter.ReferenceID)
	}
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY date DESC, id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Accounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.tx.Query(ctx, `SELECT `+accounts.Columns("")+` FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		a, err := accounts.ScanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

func (r *txRepository) NextEntryNumber(ctx context.Context, companyID int64) (string, error) {
	var seq int64
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_sequences (company_id, name, value) VALUES ($1, $2, 1)
ON CONFLICT (company_id, name) DO UPDATE SET value = ledger_sequences.value + 1
RETURNING value`, companyID, sequenceJournalEntry).Scan(&seq)
	if err != nil {
		return "", err
	}
	return shared.FormatEntryNumber(seq), nil
}

func (r *txRepository) InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, number, date, type, reference_type, reference_id,
reference_number, description, total_debit, total_credit, is_posted, posted_at, reversal_of_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING `+entryColumns,
		e.CompanyID, e.Number, shared.DateOnly(e.Date), string(e.Type), nullString(e.ReferenceType), nullString(e.ReferenceID),
		e.ReferenceNumber, e.Description, e.TotalDebit, e.TotalCredit, e.IsPosted, e.PostedAt, e.ReversalOfID, nullInt(e.CreatedBy))
	inserted, err := scanEntry(row)
	if err != nil {
		if isUniqueViolation(err, uniqueEntryNumber) {
			return JournalEntry{}, shared.ErrDuplicateEntryNumber
		}
		return JournalEntry{}, err
	}
	lines, err := r.insertLines(ctx, inserted.ID, e.Lines)
	if err != nil {
		return JournalEntry{}, err
	}
	inserted.Lines = lines
	return inserted, nil
}

func (r *txRepository) insertLines(ctx context.Context, entryID int64, lines []JournalLine) ([]JournalLine, error) {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		row := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (entry_id, account_id, description, transaction_type, amount, document_ref, position)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING `+lineColumns,
			entryID, line.AccountID, line.Description, string(line.Type), line.Amount, line.DocumentRef, line.Position)
		inserted, err := scanLine(row)
		if err != nil {
			return nil, err
		}
		out = append(out, inserted)
	}
	return out, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	return getEntry(ctx, r.tx, id, true)
}

func (r *txRepository) FindByReference(ctx context.Context, companyID int64, refType, refID string) (JournalEntry, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM journal_entries
WHERE company_id=$1 AND reference_type=$2 AND reference_id=$3 AND type <> $4
ORDER BY id DESC LIMIT 1`, companyID, refType, refID, string(EntryTypeReversal)).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrReferenceNotFound
		}
		return JournalEntry{}, err
	}
	return getEntry(ctx, r.tx, id, true)
}

func (r *txRepository) UpdateHeader(ctx context.Context, e JournalEntry) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET date=$2, description=$3, reference_number=$4,
total_debit=$5, total_credit=$6, updated_at=NOW() WHERE id=$1 AND is_posted = false`,
		e.ID, shared.DateOnly(e.Date), e.Description, e.ReferenceNumber, e.TotalDebit, e.TotalCredit)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAlreadyPosted
	}
	return nil
}

func (r *txRepository) ReplaceLines(ctx context.Context, entryID int64, lines []JournalLine) ([]JournalLine, error) {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id=$1`, entryID); err != nil {
		return nil, err
	}
	return r.insertLines(ctx, entryID, lines)
}

func (r *txRepository) DeleteEntry(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id=$1`, id); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) MarkPosted(ctx context.Context, id int64, at time.Time) (bool, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET is_posted = true, posted_at=$2, updated_at=NOW()
WHERE id=$1 AND is_posted = false`, id, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *txRepository) LinkReversal(ctx context.Context, originalID, reversalID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET reversed_by_id=$2, updated_at=NOW()
WHERE id=$1 AND reversed_by_id IS NULL`, originalID, reversalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAlreadyReversed
	}
	return nil
}

func (r *txRepository) AdjustBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	return accounts.AdjustBalance(ctx, r.tx, accountID, delta)
}

func getEntry(ctx context.Context, q queryer, id int64, lock bool) (JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE id=$1`
	if lock {
		query += ` FOR UPDATE`
	}
	entry, err := scanEntry(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := q.Query(ctx, `SELECT `+lineColumns+` FROM journal_lines WHERE entry_id=$1 ORDER BY position, id`, id)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var (
		e            JournalEntry
		entryType    string
		refType      *string
		refID        *string
		createdBy    *int64
		referenceNum *string
		description  *string
	)
	err := row.Scan(&e.ID, &e.CompanyID, &e.Number, &e.Date, &entryType, &refType, &refID, &referenceNum, &description,
		&e.TotalDebit, &e.TotalCredit, &e.IsPosted, &e.PostedAt, &e.ReversalOfID, &e.ReversedByID, &createdBy,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	e.Type = EntryType(entryType)
	e.ReferenceType = deref(refType)
	e.ReferenceID = deref(refID)
	e.ReferenceNumber = deref(referenceNum)
	e.Description = deref(description)
	if createdBy != nil {
		e.CreatedBy = *createdBy
	}
	return e, nil
}

func scanLine(row pgx.Row) (JournalLine, error) {
	var (
		l      JournalLine
		txType string
	)
	if err := row.Scan(&l.ID, &l.EntryID, &l.AccountID, &l.Description, &txType, &l.Amount, &l.DocumentRef, &l.Position); err != nil {
		return JournalLine{}, err
	}
	l.Type = shared.TransactionType(txType)
	return l, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	return false
}

func nullString(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
