// Package ledgertest provides an in-memory ledger store implementing the
// account, journal and balance repositories for package tests.
package ledgertest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type state struct {
	accounts  map[int64]accounts.Account
	entries   map[int64]journals.JournalEntry
	sequences map[int64]int64
	accountID int64
	entryID   int64
	lineID    int64
}

func (s state) clone() state {
	out := state{
		accounts:  make(map[int64]accounts.Account, len(s.accounts)),
		entries:   make(map[int64]journals.JournalEntry, len(s.entries)),
		sequences: make(map[int64]int64, len(s.sequences)),
		accountID: s.accountID,
		entryID:   s.entryID,
		lineID:    s.lineID,
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.entries {
		out.entries[k] = copyEntry(v)
	}
	for k, v := range s.sequences {
		out.sequences[k] = v
	}
	return out
}

// Store is a transactional in-memory ledger. Transactions are serialised and
// roll back to a snapshot when the callback fails.
type Store struct {
	mu       sync.Mutex
	st       state
	now      func() time.Time
	failures map[string]error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		st: state{
			accounts:  make(map[int64]accounts.Account),
			entries:   make(map[int64]journals.JournalEntry),
			sequences: make(map[int64]int64),
		},
		now:      time.Now,
		failures: make(map[string]error),
	}
}

// FailOn makes the named transactional operation return err until cleared with nil.
// Names match the TxRepository method names, e.g. "AdjustBalance".
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

func (s *Store) withTx(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// SeedAccount stores an account as is, assigning an id when missing. The
// current balance defaults to the opening balance.
func (s *Store) SeedAccount(a accounts.Account) accounts.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		s.st.accountID++
		a.ID = s.st.accountID
	} else if a.ID > s.st.accountID {
		s.st.accountID = a.ID
	}
	if a.CurrentBalance.IsZero() && !a.OpeningBalance.IsZero() {
		a.CurrentBalance = a.OpeningBalance
	}
	if a.OpeningSide == "" {
		a.OpeningSide = a.Type.NormalSide()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
		a.UpdatedAt = a.CreatedAt
	}
	s.st.accounts[a.ID] = a
	return a
}

// Account returns a snapshot of an account.
func (s *Store) Account(id int64) (accounts.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.accounts[id]
	return a, ok
}

// SetCurrentBalance overwrites the cached balance to simulate drift.
func (s *Store) SetCurrentBalance(id int64, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.st.accounts[id]
	a.CurrentBalance = balance
	s.st.accounts[id] = a
}

// Entries returns every stored entry ordered by id.
func (s *Store) Entries() []journals.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]journals.JournalEntry, 0, len(s.st.entries))
	for _, e := range s.st.entries {
		out = append(out, copyEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Accounts exposes the store as an accounts.Repository.
func (s *Store) Accounts() accounts.Repository { return accountRepo{s: s} }

// Journals exposes the store as a journals.Repository.
func (s *Store) Journals() journals.Repository { return journalRepo{s: s} }

// Balances exposes the store as a balances.Repository.
func (s *Store) Balances() balances.Repository { return balanceRepo{s: s} }

// accounts ------------------------------------------------------------------

type accountRepo struct{ s *Store }

func (r accountRepo) Get(ctx context.Context, id int64) (accounts.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getAccount(id)
}

func (r accountRepo) List(ctx context.Context, filter accounts.ListAccountsFilter) ([]accounts.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.listAccounts(filter), nil
}

func (r accountRepo) WithTx(ctx context.Context, fn func(context.Context, accounts.TxRepository) error) error {
	return r.s.withTx(func() error { return fn(ctx, accountTx{s: r.s}) })
}

func (s *Store) getAccount(id int64) (accounts.Account, error) {
	a, ok := s.st.accounts[id]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (s *Store) listAccounts(filter accounts.ListAccountsFilter) []accounts.Account {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]accounts.Account, 0)
	for _, a := range s.st.accounts {
		if a.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.IsActive != nil && a.IsActive != *filter.IsActive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.Name), search) && !strings.HasPrefix(a.Number, search) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

type accountTx struct{ s *Store }

func (t accountTx) Get(ctx context.Context, id int64) (accounts.Account, error) {
	return t.s.getAccount(id)
}

func (t accountTx) GetForUpdate(ctx context.Context, id int64) (accounts.Account, error) {
	return t.s.getAccount(id)
}

func (t accountTx) NumberExists(ctx context.Context, companyID int64, number string, excludeID int64) (bool, error) {
	for _, a := range t.s.st.accounts {
		if a.CompanyID == companyID && a.Number == number && a.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (t accountTx) HighestNumberInRange(ctx context.Context, companyID int64, r shared.NumberRange) (*int, error) {
	if err := t.s.fail("HighestNumberInRange"); err != nil {
		return nil, err
	}
	var highest *int
	for _, a := range t.s.st.accounts {
		if a.CompanyID != companyID {
			continue
		}
		n := shared.AccountNumberValue(a.Number)
		if !r.Contains(n) {
			continue
		}
		if highest == nil || n > *highest {
			v := n
			highest = &v
		}
	}
	return highest, nil
}

func (t accountTx) Insert(ctx context.Context, a accounts.Account) (accounts.Account, error) {
	if err := t.s.fail("Insert"); err != nil {
		return accounts.Account{}, err
	}
	if exists, _ := t.NumberExists(ctx, a.CompanyID, a.Number, 0); exists {
		return accounts.Account{}, shared.ErrDuplicateAccountNumber
	}
	t.s.st.accountID++
	a.ID = t.s.st.accountID
	a.CreatedAt = t.s.now()
	a.UpdatedAt = a.CreatedAt
	t.s.st.accounts[a.ID] = a
	return a, nil
}

func (t accountTx) Update(ctx context.Context, a accounts.Account) (accounts.Account, error) {
	current, ok := t.s.st.accounts[a.ID]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	if exists, _ := t.NumberExists(ctx, a.CompanyID, a.Number, a.ID); exists {
		return accounts.Account{}, shared.ErrDuplicateAccountNumber
	}
	a.CurrentBalance = current.CurrentBalance
	a.CreatedAt = current.CreatedAt
	a.UpdatedAt = t.s.now()
	t.s.st.accounts[a.ID] = a
	return a, nil
}

func (t accountTx) AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) error {
	return t.s.adjust(id, delta)
}

func (t accountTx) Delete(ctx context.Context, id int64) error {
	if _, ok := t.s.st.accounts[id]; !ok {
		return shared.ErrAccountNotFound
	}
	delete(t.s.st.accounts, id)
	return nil
}

func (t accountTx) CountLines(ctx context.Context, id int64) (int64, error) {
	var n int64
	for _, e := range t.s.st.entries {
		for _, l := range e.Lines {
			if l.AccountID == id {
				n++
			}
		}
	}
	return n, nil
}

func (t accountTx) CountChildren(ctx context.Context, id int64) (int64, error) {
	var n int64
	for _, a := range t.s.st.accounts {
		if a.ParentID != nil && *a.ParentID == id {
			n++
		}
	}
	return n, nil
}

func (s *Store) adjust(id int64, delta decimal.Decimal) error {
	if err := s.fail("AdjustBalance"); err != nil {
		return err
	}
	a, ok := s.st.accounts[id]
	if !ok {
		return shared.ErrAccountNotFound
	}
	a.CurrentBalance = a.CurrentBalance.Add(delta)
	a.UpdatedAt = s.now()
	s.st.accounts[id] = a
	return nil
}

// journals ------------------------------------------------------------------

type journalRepo struct{ s *Store }

func (r journalRepo) Get(ctx context.Context, id int64) (journals.JournalEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getEntry(id)
}

func (r journalRepo) List(ctx context.Context, filter journals.ListEntriesFilter) ([]journals.JournalEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]journals.JournalEntry, 0)
	for _, e := range r.s.st.entries {
		if e.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Posted != nil && e.IsPosted != *filter.Posted {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if !filter.Range.Contains(e.Date) {
			continue
		}
		if filter.ReferenceType != "" && e.ReferenceType != filter.ReferenceType {
			continue
		}
		if filter.ReferenceID != "" && e.ReferenceID != filter.ReferenceID {
			continue
		}
		header := copyEntry(e)
		header.Lines = nil
		out = append(out, header)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r journalRepo) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return r.s.withTx(func() error { return fn(ctx, journalTx{s: r.s}) })
}

func (s *Store) getEntry(id int64) (journals.JournalEntry, error) {
	e, ok := s.st.entries[id]
	if !ok {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	return copyEntry(e), nil
}

type journalTx struct{ s *Store }

func (t journalTx) Accounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account, len(ids))
	for _, id := range ids {
		if a, ok := t.s.st.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (t journalTx) NextEntryNumber(ctx context.Context, companyID int64) (string, error) {
	t.s.st.sequences[companyID]++
	return shared.FormatEntryNumber(t.s.st.sequences[companyID]), nil
}

func (t journalTx) InsertEntry(ctx context.Context, e journals.JournalEntry) (journals.JournalEntry, error) {
	if err := t.s.fail("InsertEntry"); err != nil {
		return journals.JournalEntry{}, err
	}
	for _, existing := range t.s.st.entries {
		if existing.CompanyID == e.CompanyID && existing.Number == e.Number {
			return journals.JournalEntry{}, shared.ErrDuplicateEntryNumber
		}
	}
	t.s.st.entryID++
	e.ID = t.s.st.entryID
	e.CreatedAt = t.s.now()
	e.UpdatedAt = e.CreatedAt
	e.Lines = t.s.assignLines(e.ID, e.Lines)
	t.s.st.entries[e.ID] = copyEntry(e)
	return e, nil
}

func (s *Store) assignLines(entryID int64, lines []journals.JournalLine) []journals.JournalLine {
	out := make([]journals.JournalLine, len(lines))
	for i, l := range lines {
		s.st.lineID++
		l.ID = s.st.lineID
		l.EntryID = entryID
		out[i] = l
	}
	return out
}

func (t journalTx) GetForUpdate(ctx context.Context, id int64) (journals.JournalEntry, error) {
	return t.s.getEntry(id)
}

func (t journalTx) FindByReference(ctx context.Context, companyID int64, refType, refID string) (journals.JournalEntry, error) {
	var found *journals.JournalEntry
	for _, e := range t.s.st.entries {
		if e.CompanyID != companyID || e.ReferenceType != refType || e.ReferenceID != refID || e.Type == journals.EntryTypeReversal {
			continue
		}
		if found == nil || e.ID > found.ID {
			c := copyEntry(e)
			found = &c
		}
	}
	if found == nil {
		return journals.JournalEntry{}, shared.ErrReferenceNotFound
	}
	return *found, nil
}

func (t journalTx) UpdateHeader(ctx context.Context, e journals.JournalEntry) error {
	current, ok := t.s.st.entries[e.ID]
	if !ok {
		return shared.ErrJournalNotFound
	}
	if current.IsPosted {
		return shared.ErrAlreadyPosted
	}
	current.Date = e.Date
	current.Description = e.Description
	current.ReferenceNumber = e.ReferenceNumber
	current.TotalDebit = e.TotalDebit
	current.TotalCredit = e.TotalCredit
	current.UpdatedAt = t.s.now()
	t.s.st.entries[e.ID] = current
	return nil
}

func (t journalTx) ReplaceLines(ctx context.Context, entryID int64, lines []journals.JournalLine) ([]journals.JournalLine, error) {
	current, ok := t.s.st.entries[entryID]
	if !ok {
		return nil, shared.ErrJournalNotFound
	}
	current.Lines = t.s.assignLines(entryID, lines)
	t.s.st.entries[entryID] = current
	return copyLines(current.Lines), nil
}

func (t journalTx) DeleteEntry(ctx context.Context, id int64) error {
	if err := t.s.fail("DeleteEntry"); err != nil {
		return err
	}
	if _, ok := t.s.st.entries[id]; !ok {
		return shared.ErrJournalNotFound
	}
	delete(t.s.st.entries, id)
	return nil
}

func (t journalTx) MarkPosted(ctx context.Context, id int64, at time.Time) (bool, error) {
	current, ok := t.s.st.entries[id]
	if !ok {
		return false, shared.ErrJournalNotFound
	}
	if current.IsPosted {
		return false, nil
	}
	current.IsPosted = true
	current.PostedAt = &at
	t.s.st.entries[id] = current
	return true, nil
}

func (t journalTx) LinkReversal(ctx context.Context, originalID, reversalID int64) error {
	current, ok := t.s.st.entries[originalID]
	if !ok {
		return shared.ErrJournalNotFound
	}
	if current.ReversedByID != nil {
		return shared.ErrAlreadyReversed
	}
	current.ReversedByID = &reversalID
	t.s.st.entries[originalID] = current
	return nil
}

func (t journalTx) AdjustBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	return t.s.adjust(accountID, delta)
}

// balances ------------------------------------------------------------------

type balanceRepo struct{ s *Store }

func (r balanceRepo) Account(ctx context.Context, id int64) (accounts.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getAccount(id)
}

func (r balanceRepo) CompanyAccounts(ctx context.Context, companyID int64) ([]accounts.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.listAccounts(accounts.ListAccountsFilter{CompanyID: companyID}), nil
}

func (r balanceRepo) AccountSums(ctx context.Context, accountID int64, dr shared.DateRange) (balances.Sums, error) {
	lines, _ := r.AccountLines(ctx, accountID, dr)
	var sums balances.Sums
	for _, l := range lines {
		sums = sums.Add(l.Type, l.Amount)
	}
	return sums, nil
}

func (r balanceRepo) CompanySums(ctx context.Context, companyID int64, dr shared.DateRange) (map[int64]balances.Sums, error) {
	lines, _ := r.CompanyLines(ctx, companyID, dr)
	out := make(map[int64]balances.Sums)
	for _, l := range lines {
		out[l.AccountID] = out[l.AccountID].Add(l.Type, l.Amount)
	}
	return out, nil
}

func (r balanceRepo) AccountLines(ctx context.Context, accountID int64, dr shared.DateRange) ([]balances.LedgerLine, error) {
	return r.s.postedLines(func(e journals.JournalEntry, l journals.JournalLine) bool {
		return l.AccountID == accountID && dr.Contains(e.Date)
	}), nil
}

func (r balanceRepo) CompanyLines(ctx context.Context, companyID int64, dr shared.DateRange) ([]balances.LedgerLine, error) {
	return r.s.postedLines(func(e journals.JournalEntry, l journals.JournalLine) bool {
		return e.CompanyID == companyID && dr.Contains(e.Date)
	}), nil
}

func (r balanceRepo) RepairBalance(ctx context.Context, accountID int64, expected, computed decimal.Decimal) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.st.accounts[accountID]
	if !ok || !a.CurrentBalance.Equal(expected) {
		return false, nil
	}
	a.CurrentBalance = computed
	r.s.st.accounts[accountID] = a
	return true, nil
}

func (s *Store) postedLines(match func(journals.JournalEntry, journals.JournalLine) bool) []balances.LedgerLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]balances.LedgerLine, 0)
	for _, e := range s.st.entries {
		if !e.IsPosted {
			continue
		}
		for _, l := range e.Lines {
			if !match(e, l) {
				continue
			}
			out = append(out, balances.LedgerLine{
				EntryID:         e.ID,
				EntryNumber:     e.Number,
				EntryType:       string(e.Type),
				Date:            e.Date,
				EntryDesc:       e.Description,
				ReferenceType:   e.ReferenceType,
				ReferenceID:     e.ReferenceID,
				ReferenceNumber: e.ReferenceNumber,
				LineID:          l.ID,
				AccountID:       l.AccountID,
				Position:        l.Position,
				Description:     l.Description,
				Type:            l.Type,
				Amount:          l.Amount,
				DocumentRef:     l.DocumentRef,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.EntryID != b.EntryID {
			return a.EntryID < b.EntryID
		}
		return a.Position < b.Position
	})
	return out
}

func copyEntry(e journals.JournalEntry) journals.JournalEntry {
	e.Lines = copyLines(e.Lines)
	return e
}

func copyLines(lines []journals.JournalLine) []journals.JournalLine {
	if lines == nil {
		return nil
	}
	out := make([]journals.JournalLine, len(lines))
	copy(out, lines)
	return out
}

var (
	_ accounts.TxRepository = accountTx{}
	_ journals.TxRepository = journalTx{}
)
