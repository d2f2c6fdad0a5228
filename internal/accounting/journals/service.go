package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort records ledger mutations.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Invalidator drops cached read models of a company after its ledger changes.
type Invalidator interface {
	Bump(ctx context.Context, companyID int64) error
}

// Recorder counts journal lifecycle events.
type Recorder interface {
	RecordJournal(event, entryType string)
}

const (
	eventCreated  = "created"
	eventPosted   = "posted"
	eventRejected = "rejected"
	eventReversed = "reversed"
	eventDeleted  = "deleted"
)

type Service struct {
	repo    Repository
	audit   AuditPort
	cache   Invalidator
	metrics Recorder
	logger  *slog.Logger
	mode    ReversalMode
	now     func() time.Time
}

func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, mode: ReversalModeReversingEntry, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithReversalMode selects how ReverseByReference undoes posted entries.
func (s *Service) WithReversalMode(mode ReversalMode) {
	if mode != "" {
		s.mode = mode
	}
}

// WithInvalidator registers the report cache to bump after ledger changes.
func (s *Service) WithInvalidator(cache Invalidator) {
	s.cache = cache
}

// WithRecorder registers a metrics sink.
func (s *Service) WithRecorder(metrics Recorder) {
	s.metrics = metrics
}

// ReversalMode reports the configured mode.
func (s *Service) ReversalMode() ReversalMode {
	return s.mode
}

func (s *Service) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListEntriesFilter) ([]JournalEntry, error) {
	if err := filter.Range.Validate(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter)
}

// Create validates and stores a draft entry. Balances are untouched until Post.
func (s *Service) Create(ctx context.Context, input CreateEntryInput) (JournalEntry, error) {
	totals, err := input.Validate()
	if err != nil {
		s.reject(input.Type, err)
		return JournalEntry{}, err
	}
	if input.Type == "" {
		input.Type = EntryTypeManual
	}
	var entry JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := s.insert(ctx, tx, input, totals)
		if err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		s.reject(input.Type, err)
		return JournalEntry{}, err
	}
	s.record(eventCreated, entry.Type)
	s.auditCreate(ctx, input.CreatedBy, entry)
	return entry, nil
}

func (s *Service) insert(ctx context.Context, tx TxRepository, input CreateEntryInput, totals Totals) (JournalEntry, error) {
	if _, err := loadAccounts(ctx, tx, input.CompanyID, input.Lines); err != nil {
		return JournalEntry{}, err
	}
	number, err := tx.NextEntryNumber(ctx, input.CompanyID)
	if err != nil {
		return JournalEntry{}, err
	}
	return tx.InsertEntry(ctx, JournalEntry{
		CompanyID:       input.CompanyID,
		Number:          number,
		Date:            shared.DateOnly(input.Date),
		Type:            input.Type,
		ReferenceType:   strings.TrimSpace(input.ReferenceType),
		ReferenceID:     strings.TrimSpace(input.ReferenceID),
		ReferenceNumber: strings.TrimSpace(input.ReferenceNumber),
		Description:     strings.TrimSpace(input.Description),
		TotalDebit:      totals.Debit,
		TotalCredit:     totals.Credit,
		CreatedBy:       input.CreatedBy,
		Lines:           buildLines(input.Lines, input.ReferenceType, input.ReferenceID),
	})
}

func (s *Service) auditCreate(ctx context.Context, actorID int64, entry JournalEntry) {
	s.auditLog(ctx, actorID, "journal.create", entry.ID, map[string]any{
		"number":         entry.Number,
		"type":           string(entry.Type),
		"reference_type": entry.ReferenceType,
		"reference_id":   entry.ReferenceID,
		"total":          entry.TotalDebit.String(),
	})
}

// Update patches a draft entry. Replacing lines deletes and recreates all of them.
func (s *Service) Update(ctx context.Context, id int64, input UpdateEntryInput, actorID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.IsPosted {
			return shared.ErrAlreadyPosted
		}
		if input.Date != nil {
			if input.Date.IsZero() {
				return shared.ErrDateRequired
			}
			current.Date = shared.DateOnly(*input.Date)
		}
		if input.Description != nil {
			current.Description = strings.TrimSpace(*input.Description)
		}
		if input.ReferenceNumber != nil {
			current.ReferenceNumber = strings.TrimSpace(*input.ReferenceNumber)
		}
		if input.Lines != nil {
			totals, err := ValidateLines(input.Lines)
			if err != nil {
				return err
			}
			if _, err := loadAccounts(ctx, tx, current.CompanyID, input.Lines); err != nil {
				return err
			}
			lines, err := tx.ReplaceLines(ctx, current.ID, buildLines(input.Lines, current.ReferenceType, current.ReferenceID))
			if err != nil {
				return err
			}
			current.Lines = lines
			current.TotalDebit = totals.Debit
			current.TotalCredit = totals.Credit
		}
		if err := tx.UpdateHeader(ctx, current); err != nil {
			return err
		}
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.auditLog(ctx, actorID, "journal.update", entry.ID, map[string]any{
		"number":        entry.Number,
		"lines_replace": input.Lines != nil,
	})
	return entry, nil
}

// Delete removes a draft entry. Posted entries can only be reversed.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.IsPosted {
			return shared.ErrAlreadyPosted
		}
		entry = current
		return tx.DeleteEntry(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(eventDeleted, entry.Type)
	s.auditLog(ctx, actorID, "journal.delete", id, map[string]any{"number": entry.Number})
	return nil
}

// Post flips a draft to posted and applies every line to its account balance in
// the same transaction. The stored lines are validated again before anything is written.
func (s *Service) Post(ctx context.Context, id int64, actorID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		entry = current
		posted, err := s.post(ctx, tx, current)
		if err != nil {
			return err
		}
		entry = posted
		return nil
	})
	if err != nil {
		if !errors.Is(err, shared.ErrAlreadyPosted) {
			s.reject(entry.Type, err)
		}
		return JournalEntry{}, err
	}
	s.posted(ctx, actorID, entry)
	return entry, nil
}

// CreateAndPost inserts and posts an entry in one transaction. Nothing is
// stored when any step fails.
func (s *Service) CreateAndPost(ctx context.Context, input CreateEntryInput, actorID int64) (JournalEntry, error) {
	totals, err := input.Validate()
	if err != nil {
		s.reject(input.Type, err)
		return JournalEntry{}, err
	}
	if input.Type == "" {
		input.Type = EntryTypeManual
	}
	var entry JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := s.insert(ctx, tx, input, totals)
		if err != nil {
			return err
		}
		posted, err := s.post(ctx, tx, inserted)
		if err != nil {
			return err
		}
		entry = posted
		return nil
	})
	if err != nil {
		s.reject(input.Type, err)
		return JournalEntry{}, err
	}
	s.record(eventCreated, entry.Type)
	s.auditCreate(ctx, input.CreatedBy, entry)
	s.posted(ctx, actorID, entry)
	return entry, nil
}

func (s *Service) posted(ctx context.Context, actorID int64, entry JournalEntry) {
	s.record(eventPosted, entry.Type)
	s.auditLog(ctx, actorID, "journal.post", entry.ID, map[string]any{
		"number": entry.Number,
		"total":  entry.TotalDebit.String(),
	})
	s.invalidate(ctx, entry.CompanyID)
}

func (s *Service) post(ctx context.Context, tx TxRepository, entry JournalEntry) (JournalEntry, error) {
	if entry.IsPosted {
		return JournalEntry{}, shared.ErrAlreadyPosted
	}
	inputs := linesToInput(entry.Lines)
	if _, err := ValidateLines(inputs); err != nil {
		return JournalEntry{}, err
	}
	accts, err := loadAccounts(ctx, tx, entry.CompanyID, inputs)
	if err != nil {
		return JournalEntry{}, err
	}
	at := s.now().UTC()
	ok, err := tx.MarkPosted(ctx, entry.ID, at)
	if err != nil {
		return JournalEntry{}, err
	}
	if !ok {
		return JournalEntry{}, shared.ErrAlreadyPosted
	}
	if err := applyEffects(ctx, tx, accts, entry.Lines, shared.SignedEffect); err != nil {
		return JournalEntry{}, err
	}
	entry.IsPosted = true
	entry.PostedAt = &at
	return entry, nil
}

// Reverse posts an offsetting entry for a posted entry.
func (s *Service) Reverse(ctx context.Context, id int64, input ReverseInput) (JournalEntry, error) {
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		rev, err := s.reverseWithEntry(ctx, tx, original, input)
		if err != nil {
			return err
		}
		reversal = rev
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(eventReversed, EntryTypeReversal)
	s.auditLog(ctx, input.ActorID, "journal.reverse", id, map[string]any{
		"reversal_id":     reversal.ID,
		"reversal_number": reversal.Number,
	})
	s.invalidate(ctx, reversal.CompanyID)
	return reversal, nil
}

// ReverseByReference undoes the entry created for a source document that is being
// deleted. Drafts are simply removed. Posted entries are reversed according to the
// configured mode; either way every touched balance returns to its prior value.
func (s *Service) ReverseByReference(ctx context.Context, companyID int64, refType, refID string, actorID int64) (ReversalResult, error) {
	if companyID == 0 {
		return ReversalResult{}, shared.ErrCompanyRequired
	}
	if strings.TrimSpace(refType) == "" || strings.TrimSpace(refID) == "" {
		return ReversalResult{}, shared.ErrIncompleteReference
	}
	result := ReversalResult{Mode: s.mode}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.FindByReference(ctx, companyID, refType, refID)
		if err != nil {
			return err
		}
		result.Original = original
		if !original.IsPosted {
			result.Deleted = true
			return tx.DeleteEntry(ctx, original.ID)
		}
		switch s.mode {
		case ReversalModeHardDelete:
			if original.ReversedByID != nil {
				return shared.ErrAlreadyReversed
			}
			accts, err := loadAccounts(ctx, tx, original.CompanyID, linesToInput(original.Lines))
			if err != nil && !errors.Is(err, shared.ErrAccountInactive) {
				return err
			}
			if err := applyEffects(ctx, tx, accts, original.Lines, shared.InverseEffect); err != nil {
				return err
			}
			result.Deleted = true
			return tx.DeleteEntry(ctx, original.ID)
		default:
			rev, err := s.reverseWithEntry(ctx, tx, original, ReverseInput{ActorID: actorID})
			if err != nil {
				return err
			}
			result.Reversal = &rev
			return nil
		}
	})
	if err != nil {
		return ReversalResult{}, err
	}
	meta := map[string]any{
		"reference_type": refType,
		"reference_id":   refID,
		"mode":           string(result.Mode),
		"number":         result.Original.Number,
	}
	switch {
	case result.Reversal != nil:
		meta["reversal_id"] = result.Reversal.ID
		s.record(eventReversed, EntryTypeReversal)
	case result.Original.IsPosted:
		s.record(eventReversed, result.Original.Type)
	default:
		s.record(eventDeleted, result.Original.Type)
	}
	s.auditLog(ctx, actorID, "journal.reverse_reference", result.Original.ID, meta)
	if result.Original.IsPosted {
		s.invalidate(ctx, companyID)
	}
	s.logger.Info("journal reversed by reference",
		slog.Int64("company_id", companyID),
		slog.String("reference_type", refType),
		slog.String("reference_id", refID),
		slog.String("mode", string(result.Mode)),
		slog.Bool("deleted", result.Deleted))
	return result, nil
}

func (s *Service) reverseWithEntry(ctx context.Context, tx TxRepository, original JournalEntry, input ReverseInput) (JournalEntry, error) {
	if !original.IsPosted {
		return JournalEntry{}, shared.ErrNotPosted
	}
	if original.ReversedByID != nil {
		return JournalEntry{}, shared.ErrAlreadyReversed
	}
	if original.Type == EntryTypeReversal {
		return JournalEntry{}, fmt.Errorf("%w: %s is itself a reversal", shared.ErrInvalidStatus, original.Number)
	}
	lines := reverseLines(original.Lines)
	totals, err := ValidateLines(lines)
	if err != nil {
		return JournalEntry{}, err
	}
	date := original.Date
	if input.Date != nil && !input.Date.IsZero() {
		date = shared.DateOnly(*input.Date)
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = fmt.Sprintf("Reversal of %s", original.Number)
	}
	number, err := tx.NextEntryNumber(ctx, original.CompanyID)
	if err != nil {
		return JournalEntry{}, err
	}
	originalID := original.ID
	inserted, err := tx.InsertEntry(ctx, JournalEntry{
		CompanyID:       original.CompanyID,
		Number:          number,
		Date:            date,
		Type:            EntryTypeReversal,
		ReferenceType:   original.ReferenceType,
		ReferenceID:     original.ReferenceID,
		ReferenceNumber: original.ReferenceNumber,
		Description:     description,
		TotalDebit:      totals.Debit,
		TotalCredit:     totals.Credit,
		ReversalOfID:    &originalID,
		CreatedBy:       input.ActorID,
		Lines:           buildLines(lines, original.ReferenceType, original.ReferenceID),
	})
	if err != nil {
		return JournalEntry{}, err
	}
	accts, err := loadAccounts(ctx, tx, original.CompanyID, lines)
	if err != nil && !errors.Is(err, shared.ErrAccountInactive) {
		return JournalEntry{}, err
	}
	at := s.now().UTC()
	ok, err := tx.MarkPosted(ctx, inserted.ID, at)
	if err != nil {
		return JournalEntry{}, err
	}
	if !ok {
		return JournalEntry{}, shared.ErrAlreadyPosted
	}
	if err := applyEffects(ctx, tx, accts, inserted.Lines, shared.SignedEffect); err != nil {
		return JournalEntry{}, err
	}
	if err := tx.LinkReversal(ctx, original.ID, inserted.ID); err != nil {
		return JournalEntry{}, err
	}
	inserted.IsPosted = true
	inserted.PostedAt = &at
	return inserted, nil
}

// loadAccounts resolves the accounts of lines and checks they exist, belong to
// companyID and are active. An inactive account still returns the full map so
// reversals can undo history on accounts disabled since.
func loadAccounts(ctx context.Context, tx TxRepository, companyID int64, lines []LineInput) (map[int64]accounts.Account, error) {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.AccountID]; ok {
			continue
		}
		seen[l.AccountID] = struct{}{}
		ids = append(ids, l.AccountID)
	}
	accts, err := tx.Accounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	var inactive error
	for idx, l := range lines {
		acct, ok := accts[l.AccountID]
		if !ok {
			return nil, fmt.Errorf("line %d: account %d: %w", idx+1, l.AccountID, shared.ErrAccountNotFound)
		}
		if acct.CompanyID != companyID {
			return nil, fmt.Errorf("line %d: account %s: %w", idx+1, acct.Number, shared.ErrCompanyMismatch)
		}
		if !acct.IsActive && inactive == nil {
			inactive = fmt.Errorf("line %d: account %s: %w", idx+1, acct.Number, shared.ErrAccountInactive)
		}
	}
	return accts, inactive
}

// applyEffects sums the per-account deltas of lines using effect and applies
// them in ascending account id order so concurrent posts lock rows consistently.
func applyEffects(ctx context.Context, tx TxRepository, accts map[int64]accounts.Account, lines []JournalLine,
	effect func(shared.AccountType, shared.TransactionType, decimal.Decimal) decimal.Decimal) error {
	deltas := make(map[int64]decimal.Decimal, len(accts))
	for _, l := range lines {
		acct, ok := accts[l.AccountID]
		if !ok {
			return fmt.Errorf("account %d: %w", l.AccountID, shared.ErrAccountNotFound)
		}
		deltas[l.AccountID] = deltas[l.AccountID].Add(effect(acct.Type, l.Type, l.Amount))
	}
	ids := make([]int64, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if deltas[id].IsZero() {
			continue
		}
		if err := tx.AdjustBalance(ctx, id, deltas[id]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) reject(entryType EntryType, err error) {
	s.record(eventRejected, entryType)
	s.logger.Warn("journal rejected", slog.String("type", string(entryType)), slog.Any("error", err))
}

func (s *Service) record(event string, entryType EntryType) {
	if s.metrics == nil {
		return
	}
	if entryType == "" {
		entryType = EntryTypeManual
	}
	s.metrics.RecordJournal(event, string(entryType))
}

func (s *Service) invalidate(ctx context.Context, companyID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx, companyID); err != nil {
		s.logger.Warn("report cache bump failed", slog.Int64("company_id", companyID), slog.Any("error", err))
	}
}

func (s *Service) auditLog(ctx context.Context, actorID int64, action string, entryID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entryID),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
